// Package jobmetrics instruments background task execution in the worker.
// Remap runs over large legacy tables take seconds to minutes, so the
// duration buckets stretch well past the HTTP-latency defaults.
package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the worker's task collectors. A nil *Metrics is usable and
// records nothing, matching the rest of the engine's observability layer.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the task collectors. A nil registerer means the
// default Prometheus registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stitchline_worker_task_runs_total",
		Help: "Completed worker task executions by task type and outcome.",
	}, []string{"task", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stitchline_worker_task_duration_seconds",
		Help:    "Wall time of worker task executions by task type.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
	}, []string{"task"})
	registerer.MustRegister(runs, duration)
	return &Metrics{runs: runs, duration: duration}
}

// Tracker times a single task execution.
type Tracker struct {
	metrics *Metrics
	task    string
	start   time.Time
}

// Track starts timing one execution of the named task. Safe on a nil
// receiver.
func (m *Metrics) Track(task string) *Tracker {
	return &Tracker{metrics: m, task: task, start: time.Now()}
}

// End records the outcome and duration, passing the error through so it can
// sit on a deferred result assignment.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.task == "" {
		return err
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	t.metrics.runs.WithLabelValues(t.task, outcome).Inc()
	t.metrics.duration.WithLabelValues(t.task).Observe(time.Since(t.start).Seconds())
	return err
}
