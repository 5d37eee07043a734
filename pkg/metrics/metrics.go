package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SSHHandshakesTotal counts control-master establishment attempts.
	SSHHandshakesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gplmt_ssh_handshakes_total",
			Help: "Total SSH control-master handshakes attempted, by outcome",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	SSHActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gplmt_ssh_active_connections",
			Help: "Current number of SSH operations admitted past the connection governor",
		},
	)

	SSHHandshakeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gplmt_ssh_handshake_duration_seconds",
			Help:    "Time taken to establish an SSH control master",
			Buckets: prometheus.DefBuckets,
		},
	)

	TasksRunTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gplmt_tasks_run_total",
			Help: "Total run tasks completed, by outcome",
		},
		[]string{"outcome"}, // "ok", "error", "cancelled"
	)

	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gplmt_task_duration_seconds",
			Help:    "Duration of a single run task's command execution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node"},
	)

	TransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gplmt_transfers_total",
			Help: "Total get/put file transfers, by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	TeardownsRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gplmt_teardowns_registered_total",
			Help: "Total teardown tasklists registered during the run",
		},
	)

	TeardownsRunTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gplmt_teardowns_run_total",
			Help: "Total teardown tasklists executed, by outcome",
		},
		[]string{"outcome"},
	)

	TasklistsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gplmt_tasklists_active",
			Help: "Number of tasklist invocations currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(SSHHandshakesTotal)
	prometheus.MustRegister(SSHActiveConnections)
	prometheus.MustRegister(SSHHandshakeDuration)
	prometheus.MustRegister(TasksRunTotal)
	prometheus.MustRegister(TaskDuration)
	prometheus.MustRegister(TransfersTotal)
	prometheus.MustRegister(TeardownsRegistered)
	prometheus.MustRegister(TeardownsRunTotal)
	prometheus.MustRegister(TasklistsActive)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
