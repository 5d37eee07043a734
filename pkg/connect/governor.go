package connect

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/cuemby/gplmt/pkg/metrics"
)

// Governor bounds the number of SSH connections in flight at once and,
// when a cooldown is configured, serializes the moment a new connection
// is allowed to start so that a burst of parallel tasks against the
// same fleet doesn't all hit sshd in the same instant.
//
// Acquire blocks until both a concurrency slot and (if a cooldown is
// set) the cooldown window are available; Release frees the
// concurrency slot only -- the cooldown clock runs independently of
// how long the connection stays open.
type Governor struct {
	sem      *semaphore.Weighted
	cooldown time.Duration

	mu       sync.Mutex
	lastDial time.Time

	activeMu sync.Mutex
	active   int
}

// NewGovernor builds a Governor admitting up to parallelism concurrent
// connections. A cooldown of zero disables dial spacing entirely.
func NewGovernor(parallelism int, cooldown time.Duration) *Governor {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Governor{
		sem:      semaphore.NewWeighted(int64(parallelism)),
		cooldown: cooldown,
	}
}

// Acquire blocks until the governor admits a new connection attempt,
// returning a release func the caller must invoke exactly once when the
// connection is torn down. It returns ctx.Err() if ctx is cancelled
// first. The caller (pkg/node) is responsible for recording the actual
// handshake outcome and duration against metrics.SSHHandshakesTotal /
// metrics.SSHHandshakeDuration once it dials.
func (g *Governor) Acquire(ctx context.Context) (release func(), err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	if err := g.waitCooldown(ctx); err != nil {
		g.sem.Release(1)
		return nil, err
	}

	g.activeMu.Lock()
	g.active++
	metrics.SSHActiveConnections.Set(float64(g.active))
	g.activeMu.Unlock()

	var once sync.Once
	release = func() {
		once.Do(func() {
			g.activeMu.Lock()
			g.active--
			metrics.SSHActiveConnections.Set(float64(g.active))
			g.activeMu.Unlock()
			g.sem.Release(1)
		})
	}
	return release, nil
}

// waitCooldown blocks, if necessary, until at least g.cooldown has
// elapsed since the previous dial was admitted.
func (g *Governor) waitCooldown(ctx context.Context) error {
	if g.cooldown <= 0 {
		return nil
	}

	g.mu.Lock()
	wait := time.Until(g.lastDial.Add(g.cooldown))
	if wait < 0 {
		wait = 0
	}
	g.lastDial = time.Now().Add(wait)
	g.mu.Unlock()

	if wait == 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveConnections reports the number of connections currently
// admitted, satisfying pkg/metrics.StatsSource.
func (g *Governor) ActiveConnections() int {
	g.activeMu.Lock()
	defer g.activeMu.Unlock()
	return g.active
}
