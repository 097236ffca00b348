package pool

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utkarsh5026/cpool/internal/scheduler"
)

const metricsSubsystem = "pool"

// metrics holds the manager's prometheus collectors. A nil *metrics is valid
// and records nothing.
type metrics struct {
	submitted prometheus.Counter
	completed prometheus.Counter
	failed    prometheus.Counter
	discarded prometheus.Counter
	rejected  prometheus.Counter
	retried   prometheus.Counter

	busyWorkers prometheus.Gauge
	queueDepth  prometheus.GaugeFunc
	workers     prometheus.GaugeFunc

	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer, namespace string, queue *scheduler.Queue, workerCount int) (*metrics, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		})
	}

	met := &metrics{
		submitted: counter("tasks_submitted_total", "Tasks accepted by Dispatch."),
		completed: counter("tasks_completed_total", "Tasks that finished without error."),
		failed:    counter("tasks_failed_total", "Tasks that finished with an error or panic."),
		discarded: counter("tasks_discarded_total", "Tasks dropped at shutdown without running."),
		rejected:  counter("tasks_rejected_total", "Dispatches refused for a nil or mismatched callable."),
		retried:   counter("task_retries_total", "Retry attempts after a failed computation."),
		busyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "busy_workers",
			Help:      "Workers currently executing a task.",
		}),
		queueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "queue_depth",
			Help:      "Tasks waiting in the queue.",
		}, func() float64 { return float64(queue.Len()) }),
		workers: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "workers",
			Help:      "Configured worker count.",
		}, func() float64 { return float64(workerCount) }),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "task_duration_seconds",
			Help:      "Time spent running a task, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}

	var errs []error
	for _, c := range []prometheus.Collector{
		met.submitted, met.completed, met.failed, met.discarded, met.rejected, met.retried,
		met.busyWorkers, met.queueDepth, met.workers, met.duration,
	} {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return met, errors.Join(errs...)
}

func (m *metrics) incSubmitted() {
	if m != nil {
		m.submitted.Inc()
	}
}

func (m *metrics) incRejected() {
	if m != nil {
		m.rejected.Inc()
	}
}

func (m *metrics) incRetried() {
	if m != nil {
		m.retried.Inc()
	}
}

func (m *metrics) addDiscarded(n int) {
	if m != nil {
		m.discarded.Add(float64(n))
	}
}

func (m *metrics) setBusy(n int64) {
	if m != nil {
		m.busyWorkers.Set(float64(n))
	}
}

func (m *metrics) observe(err error, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		m.failed.Inc()
	} else {
		m.completed.Inc()
	}
	m.duration.WithLabelValues(status).Observe(seconds)
}
