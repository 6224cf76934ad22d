package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Worker metrics
var (
	// JobsProcessed counts the total number of transcode jobs by outcome.
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vod",
			Name:      "jobs_processed_total",
			Help:      "Total number of transcode jobs processed",
		},
		[]string{"status"},
	)

	// ActiveJobs tracks the number of currently processing jobs.
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vod",
			Name:      "active_jobs",
			Help:      "Number of currently processing jobs",
		},
	)

	// StageDuration tracks the time spent in each pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vod",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Time spent per pipeline stage",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	// ProcessingDuration tracks the total time to process a job.
	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vod",
			Name:      "job_processing_duration_seconds",
			Help:      "Total time taken to process a transcode job",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
		},
	)

	// ArtifactsPublished counts objects uploaded to the processed bucket.
	ArtifactsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vod",
			Name:      "artifacts_published_total",
			Help:      "Total number of artifacts published to object storage",
		},
	)
)

// API metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vod",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vod",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AuthFailures counts authentication failures by type.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vod",
			Subsystem: "api",
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)

	// UploadsInitiated counts created upload sessions.
	UploadsInitiated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vod",
			Subsystem: "api",
			Name:      "uploads_initiated_total",
			Help:      "Total number of upload sessions created",
		},
	)

	// UploadsCompleted counts completed uploads.
	UploadsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vod",
			Subsystem: "api",
			Name:      "uploads_completed_total",
			Help:      "Total number of uploads completed and queued",
		},
	)

	// UploadsDiscarded counts discarded sessions.
	UploadsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vod",
			Subsystem: "api",
			Name:      "uploads_discarded_total",
			Help:      "Total number of upload sessions discarded",
		},
	)

	// DiscardOrphanedKeys counts object keys a discard failed to delete.
	DiscardOrphanedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vod",
			Subsystem: "api",
			Name:      "discard_orphaned_keys_total",
			Help:      "Object keys left behind by discard for reconciliation",
		},
	)
)

// RecordSuccess records a successfully processed job.
func RecordSuccess() {
	JobsProcessed.WithLabelValues("success").Inc()
}

// RecordFailure records a failed job.
func RecordFailure() {
	JobsProcessed.WithLabelValues("failed").Inc()
}
