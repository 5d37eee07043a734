/*
Package metrics exposes gplmt's Prometheus instrumentation: SSH
handshake/connection-governor gauges, task/transfer/teardown counters,
and a Timer helper for histogram observations, following the same
global-vars-plus-init-registration pattern as the teacher repo's
metrics package.

# Usage

	metrics.TasksRunTotal.WithLabelValues("ok").Inc()

	timer := metrics.NewTimer()
	runCommand()
	timer.ObserveDurationVec(metrics.TaskDuration, nodeName)

	http.Handle("/metrics", metrics.Handler())

Collector polls gauge-valued stats (active connections, active
tasklists) off a StatsSource on a ticker, rather than updating a gauge
from every call site -- the same "ticker-driven snapshot" shape the
teacher's Collector used against its manager.
*/
package metrics
