package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/gplmt/pkg/log"
	"github.com/cuemby/gplmt/pkg/targets"
	"github.com/cuemby/gplmt/pkg/types"
)

// jobHandle tracks one concurrently-running tasklist invocation
// scheduled by ExecutionContext, mirroring the asyncio Task objects
// the original tags with gplmt_node/gplmt_background.
type jobHandle struct {
	node       string
	background bool
	err        error
}

// ExecutionContext schedules and joins concurrent tasklist
// invocations the way the original's ExecutionContext/Testbed pair
// does: scheduling never blocks, only an explicit Join (driven by a
// StepSynchronize, or the run's final drain) waits for pending jobs.
type ExecutionContext struct {
	runner   *TaskRunner
	registry *targets.Registry
	env      map[string]*types.TaskDef

	mu          sync.Mutex
	pending     map[*jobHandle]bool
	completions chan *jobHandle
}

// NewExecutionContext builds an ExecutionContext over the given
// tasklist registry and target registry.
func NewExecutionContext(runner *TaskRunner, registry *targets.Registry, env map[string]*types.TaskDef) *ExecutionContext {
	return &ExecutionContext{
		runner:      runner,
		registry:    registry,
		env:         env,
		pending:     make(map[*jobHandle]bool),
		completions: make(chan *jobHandle, 64),
	}
}

func (ec *ExecutionContext) schedule(nodeName string, background bool, fn func() error) {
	h := &jobHandle{node: nodeName, background: background}
	ec.mu.Lock()
	ec.pending[h] = true
	ec.mu.Unlock()

	go func() {
		h.err = fn()
		ec.completions <- h
	}()
}

// ScheduleTasklist resolves targetExpr against the registry and
// schedules one job per resolved node. delay, if positive, is slept
// before the tasklist begins; stopAt, if non-zero, bounds how long the
// invocation is allowed to run in addition to the tasklist's own
// timeout.
func (ec *ExecutionContext) ScheduleTasklist(ctx context.Context, targetExpr string, def *types.TaskDef, background bool, delay time.Duration, varEnv types.Env, stopAt time.Time) error {
	nodes, err := ec.registry.Resolve(targetExpr)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		n := n
		ec.schedule(n.Name, background, func() error {
			if delay > 0 {
				t := time.NewTimer(delay)
				defer t.Stop()
				select {
				case <-t.C:
				case <-ctx.Done():
					return types.ErrCancelled
				}
			}

			runCtx := ctx
			if !stopAt.IsZero() {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithDeadline(ctx, stopAt)
				defer cancel()
			}
			return ec.runner.RunTasklist(runCtx, def, ec.env, n, varEnv)
		})
	}
	return nil
}

// Join blocks until every pending job has completed, except:
//   - if targetNodes is non-nil, Join returns as soon as no pending job
//     targets one of those node names (jobs against unrelated nodes are
//     left running);
//   - if targetNodes is nil, Join returns as soon as every remaining
//     pending job is a background job.
//
// A *types.StopExperiment with Scope stop-experiment observed from any
// joined job is returned immediately; stop-tasklist/stop-step scoped
// stops are swallowed (the tasklist that raised them already ran its
// own cleanup).
func (ec *ExecutionContext) Join(targetNodes []string) error {
	var targetSet map[string]bool
	if targetNodes != nil {
		targetSet = make(map[string]bool, len(targetNodes))
		for _, n := range targetNodes {
			targetSet[n] = true
		}
	}

	if ec.satisfiesBreak(targetSet) {
		return nil
	}

	for {
		h := <-ec.completions
		ec.mu.Lock()
		delete(ec.pending, h)
		ec.mu.Unlock()

		if h.err != nil {
			var stopExp *types.StopExperiment
			if errors.As(h.err, &stopExp) {
				if stopExp.Scope == types.ScopeStopExperiment {
					return h.err
				}
				log.Logger.Info().Str("scope", string(stopExp.Scope)).Msg("stop experiment scoped below experiment, continuing")
			} else if !types.IsCancelled(h.err) {
				return h.err
			}
		}

		if ec.satisfiesBreak(targetSet) {
			return nil
		}
	}
}

func (ec *ExecutionContext) satisfiesBreak(targetSet map[string]bool) bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if len(ec.pending) == 0 {
		return true
	}
	for h := range ec.pending {
		if targetSet != nil {
			if targetSet[h.node] {
				return false
			}
		} else if !h.background {
			return false
		}
	}
	return true
}

// PendingCount reports how many scheduled jobs have not yet completed,
// satisfying the tasklist half of pkg/metrics.StatsSource via
// pkg/testbed.
func (ec *ExecutionContext) PendingCount() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return len(ec.pending)
}

// CancelPending waits out every still-pending job without applying any
// early-break condition, used at the very end of a run to drain
// whatever background work is still outstanding.
func (ec *ExecutionContext) CancelPending() {
	for {
		ec.mu.Lock()
		n := len(ec.pending)
		ec.mu.Unlock()
		if n == 0 {
			return
		}
		h := <-ec.completions
		ec.mu.Lock()
		delete(ec.pending, h)
		ec.mu.Unlock()
	}
}

// RunStep dispatches one StepNode. StepTasklist scheduling never
// blocks; StepSynchronize blocks inline (matching the original's
// _step_synchronize, which is yielded from directly in the top-level
// step loop).
func (ec *ExecutionContext) RunStep(ctx context.Context, step types.StepNode, varEnv types.Env) error {
	switch s := step.(type) {
	case types.StepTasklist:
		def, ok := ec.env[s.Tasklist]
		if !ok {
			return &types.SyntaxError{Message: "tasklist " + s.Tasklist + " not found"}
		}
		delay := resolveDelay(s.StartRelative, s.StartAbsolute)
		stopAt := resolveDeadline(s.StopRelative, s.StopAbsolute)
		merged := varEnv.With(s.Env)
		return ec.ScheduleTasklist(ctx, strings.Join(s.Targets, " "), def, s.Background, delay, merged, stopAt)

	case types.StepSynchronize:
		return ec.Join(nil)

	case types.StepRegisterTeardown:
		def, ok := ec.env[s.Tasklist]
		if !ok {
			return &types.SyntaxError{Message: "tasklist " + s.Tasklist + " not found"}
		}
		if ec.runner.teardowns != nil {
			ec.runner.teardowns.RegisterTeardown(strings.Join(s.Targets, " "), def, varEnv.With(s.Env))
		}
		return nil

	case types.StepLoop:
		ec.schedule("", false, func() error {
			return ec.runLoop(ctx, s, varEnv)
		})
		return nil

	default:
		return &types.SyntaxError{Message: "unknown step node"}
	}
}

func resolveDelay(relative time.Duration, absolute time.Time) time.Duration {
	if relative > 0 {
		return relative
	}
	if !absolute.IsZero() {
		d := time.Until(absolute)
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}

func resolveDeadline(relative time.Duration, absolute time.Time) time.Time {
	if relative > 0 {
		return time.Now().Add(relative)
	}
	return absolute
}
