package prometheus

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/fluxorio/keyseq/pkg/core/concurrency"
	"github.com/fluxorio/keyseq/pkg/keyseq"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "keyseq"}, DefaultRegistry)

	// Metrics collection
	metricsOnce sync.Once
	metrics     *Metrics
)

var _ keyseq.MetricsRecorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Keyed executor metrics
	JobsRouted    *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	JobsPanicked  *prometheus.CounterVec
	JobsRejected  *prometheus.CounterVec
	JobsPending   *prometheus.GaugeVec
	JobDuration   *prometheus.HistogramVec

	// Baseline pool metrics
	PoolQueuedTasks    *prometheus.GaugeVec
	PoolCompletedTasks *prometheus.GaugeVec
	PoolFailedTasks    *prometheus.GaugeVec
	PoolRejectedTasks  *prometheus.GaugeVec

	// Admin HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a new metrics collection
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		JobsRouted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyseq_jobs_routed_total",
				Help: "Total number of jobs the control loop routed to a worker",
			},
			[]string{"executor", "worker"},
		),
		JobsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyseq_jobs_completed_total",
				Help: "Total number of jobs finished by a worker, panicked ones included",
			},
			[]string{"executor", "worker"},
		),
		JobsPanicked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyseq_jobs_panicked_total",
				Help: "Total number of jobs that panicked",
			},
			[]string{"executor", "worker"},
		),
		JobsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyseq_jobs_rejected_total",
				Help: "Total number of submissions rejected after stop",
			},
			[]string{"executor"},
		),
		JobsPending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "keyseq_jobs_pending",
				Help: "Jobs routed to a worker and not yet finished",
			},
			[]string{"executor", "worker"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keyseq_job_duration_seconds",
				Help:    "Job run time in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
			},
			[]string{"executor", "worker"},
		),

		PoolQueuedTasks: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "keyseq_pool_queued_tasks",
				Help: "Tasks waiting in the baseline pool queue",
			},
			[]string{"pool"},
		),
		PoolCompletedTasks: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "keyseq_pool_completed_tasks",
				Help: "Tasks the baseline pool has completed",
			},
			[]string{"pool"},
		),
		PoolFailedTasks: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "keyseq_pool_failed_tasks",
				Help: "Baseline pool tasks that returned an error or panicked",
			},
			[]string{"pool"},
		),
		PoolRejectedTasks: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "keyseq_pool_rejected_tasks",
				Help: "Baseline pool submissions rejected by backpressure",
			},
			[]string{"pool"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyseq_http_requests_total",
				Help: "Total number of admin HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keyseq_http_request_duration_seconds",
				Help:    "Admin HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

// JobRouted implements keyseq.MetricsRecorder
func (m *Metrics) JobRouted(executor string, worker int) {
	w := strconv.Itoa(worker)
	m.JobsRouted.WithLabelValues(executor, w).Inc()
	m.JobsPending.WithLabelValues(executor, w).Inc()
}

// JobCompleted implements keyseq.MetricsRecorder
func (m *Metrics) JobCompleted(executor string, worker int, elapsed time.Duration) {
	w := strconv.Itoa(worker)
	m.JobsCompleted.WithLabelValues(executor, w).Inc()
	m.JobsPending.WithLabelValues(executor, w).Dec()
	m.JobDuration.WithLabelValues(executor, w).Observe(elapsed.Seconds())
}

// JobPanicked implements keyseq.MetricsRecorder
func (m *Metrics) JobPanicked(executor string, worker int) {
	m.JobsPanicked.WithLabelValues(executor, strconv.Itoa(worker)).Inc()
}

// JobRejected implements keyseq.MetricsRecorder
func (m *Metrics) JobRejected(executor string) {
	m.JobsRejected.WithLabelValues(executor).Inc()
}

// UpdatePool copies a baseline pool snapshot into the pool gauges.
func (m *Metrics) UpdatePool(pool string, s concurrency.ExecutorStats) {
	m.PoolQueuedTasks.WithLabelValues(pool).Set(float64(s.QueuedTasks))
	m.PoolCompletedTasks.WithLabelValues(pool).Set(float64(s.CompletedTasks))
	m.PoolFailedTasks.WithLabelValues(pool).Set(float64(s.FailedTasks))
	m.PoolRejectedTasks.WithLabelValues(pool).Set(float64(s.RejectedTasks))
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// Handler serves the metrics in g in the Prometheus text format.
// A nil gatherer serves DefaultRegistry.
func Handler(g prometheus.Gatherer) fasthttp.RequestHandler {
	if g == nil {
		g = DefaultRegistry
	}
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// StatusClass groups a status code as 2xx, 3xx, 4xx or 5xx.
func StatusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
