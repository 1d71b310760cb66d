package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job and execution metrics
	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nificdc_jobs_total",
			Help: "Total number of jobs by status",
		},
		[]string{"status"},
	)

	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nificdc_executions_total",
			Help: "Total number of executions by terminal status and trigger",
		},
		[]string{"status", "trigger"},
	)

	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nificdc_execution_duration_seconds",
			Help:    "Execution wall-clock duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"status"},
	)

	RecordsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nificdc_records_processed_total",
			Help: "Total number of source records processed",
		},
	)

	RecordErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nificdc_record_errors_total",
			Help: "Total number of per-record mapping errors",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nificdc_queue_depth",
			Help: "Executions currently waiting in the priority queue",
		},
	)

	RunningExecutions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nificdc_running_executions",
			Help: "Executions currently admitted and running",
		},
	)

	// Scheduler metrics
	SchedulerTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nificdc_scheduler_ticks_total",
			Help: "Total number of scheduler dispatch ticks",
		},
	)

	JobsDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nificdc_jobs_dispatched_total",
			Help: "Total number of jobs enqueued by the scheduler",
		},
	)

	// Sandbox metrics
	SandboxEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nificdc_sandbox_evaluations_total",
			Help: "Total number of sandbox evaluations by outcome",
		},
		[]string{"outcome"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nificdc_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nificdc_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	RateLimitRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nificdc_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// Audit and alert metrics
	AuditEventsBuffered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nificdc_audit_events_buffered",
			Help: "Audit events waiting in the ingestion buffer",
		},
	)

	AlertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nificdc_alerts_fired_total",
			Help: "Total number of alerts fired by rule",
		},
		[]string{"rule"},
	)

	// Telemetry metrics
	TelemetrySamples = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nificdc_telemetry_samples_total",
			Help: "Total number of telemetry samples ingested",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(ExecutionsTotal)
	prometheus.MustRegister(ExecutionDuration)
	prometheus.MustRegister(RecordsProcessed)
	prometheus.MustRegister(RecordErrors)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(RunningExecutions)
	prometheus.MustRegister(SchedulerTicks)
	prometheus.MustRegister(JobsDispatched)
	prometheus.MustRegister(SandboxEvaluations)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(RateLimitRejections)
	prometheus.MustRegister(AuditEventsBuffered)
	prometheus.MustRegister(AlertsFired)
	prometheus.MustRegister(TelemetrySamples)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
