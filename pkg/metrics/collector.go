package metrics

import "time"

// StatsSource is implemented by pkg/testbed's Testbed so the collector
// can poll gauges without pkg/metrics importing pkg/testbed (which
// itself imports pkg/metrics to record counters/histograms directly).
type StatsSource interface {
	ActiveConnections() int
	ActiveTasklists() int
}

// Collector periodically snapshots gauge-style metrics from a running
// experiment, the way the teacher's metrics.Collector polled the
// manager on a ticker rather than pushing updates from every call site.
type Collector struct {
	source StatsSource
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 5 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	SSHActiveConnections.Set(float64(c.source.ActiveConnections()))
	TasklistsActive.Set(float64(c.source.ActiveTasklists()))
}
