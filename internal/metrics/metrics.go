package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics bundles the pipeline's instrumentation. It is constructed
// once and passed by reference; there is no package-level mutable state.
type PipelineMetrics struct {
	registry *prometheus.Registry

	JobsSubmitted      prometheus.Counter
	JobsSucceeded      prometheus.Counter
	JobsFailed         prometheus.Counter
	JobRetries         prometheus.Counter
	JobsRejected       prometheus.Counter
	DuplicatesDetected prometheus.Counter
	EventsPublished    prometheus.Counter
	EventsDropped      prometheus.Counter
	ExtractionSeconds  prometheus.Histogram
	QueueDepth         prometheus.Gauge
	Subscribers        prometheus.Gauge
}

// NewPipelineMetrics creates the metric set on its own registry.
func NewPipelineMetrics() *PipelineMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PipelineMetrics{
		registry: reg,
		JobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_jobs_submitted_total",
			Help: "Processing jobs accepted by the orchestrator.",
		}),
		JobsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_jobs_succeeded_total",
			Help: "Processing jobs that reached processed or requires_review.",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_jobs_failed_total",
			Help: "Processing jobs that terminated in failed.",
		}),
		JobRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_job_retries_total",
			Help: "Extraction attempts beyond the first, per retry policy.",
		}),
		JobsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_jobs_rejected_total",
			Help: "Submissions refused because the worker pool was saturated.",
		}),
		DuplicatesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_duplicates_detected_total",
			Help: "Records flagged as duplicates of an earlier record.",
		}),
		EventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_lifecycle_events_published_total",
			Help: "Lifecycle events handed to the broadcaster.",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_lifecycle_events_dropped_total",
			Help: "Events dropped for slow subscribers (drop-oldest policy).",
		}),
		ExtractionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoice_extraction_duration_seconds",
			Help:    "Wall time of outbound extraction calls.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "invoice_processing_queue_depth",
			Help: "Jobs queued or in flight in the worker pool.",
		}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "invoice_event_subscribers",
			Help: "Currently connected push subscribers.",
		}),
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}
