// Package metrics exposes Prometheus collectors for ingestion, enrichment and
// the job queue. Collectors register on the default registry at init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Acquisition
	AcquisitionCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playledger_acquisition_cycles_total",
			Help: "Acquisition cycles run per outcome",
		},
		[]string{"outcome"}, // "ok", "auth_failed", "fetch_failed", "timeout"
	)

	AcquisitionCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "playledger_acquisition_cycle_duration_seconds",
			Help:    "Duration of one user's acquisition cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	ObservationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playledger_observations_total",
			Help: "Playback observations processed per result",
		},
		[]string{"result"}, // "recorded", "duplicate", "failed"
	)

	ActivePollers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playledger_active_pollers",
			Help: "Number of users with a scheduled poller",
		},
	)

	// Catalog
	CatalogResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playledger_catalog_resolutions_total",
			Help: "Catalog resolutions by entity and path taken",
		},
		[]string{"entity", "path"}, // path: "found", "created", "conflict"
	)

	CatalogAnomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playledger_catalog_anomalies_total",
			Help: "Identity keys that matched more than one catalog row",
		},
		[]string{"entity"},
	)

	// Enrichment
	EnrichmentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playledger_enrichment_outcomes_total",
			Help: "Album enrichment attempts by outcome",
		},
		[]string{"outcome"}, // "matched", "no_match", "deferred", "skipped", "error"
	)

	EnrichmentBackoffs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playledger_enrichment_backoffs_total",
			Help: "Randomized backoffs taken after a rate-limited lookup",
		},
	)

	// Job queue
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playledger_jobs_processed_total",
			Help: "Jobs finished by type and status",
		},
		[]string{"type", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playledger_job_duration_seconds",
			Help:    "Job handler duration by type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// Outbound HTTP
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playledger_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playledger_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playledger_upstream_requests_total",
			Help: "Outbound requests by upstream and result",
		},
		[]string{"upstream", "result"}, // result: "ok", "rate_limited", "error", "rejected"
	)
)

// RecordCycle records one acquisition cycle.
func RecordCycle(outcome string, duration time.Duration) {
	AcquisitionCycles.WithLabelValues(outcome).Inc()
	AcquisitionCycleDuration.Observe(duration.Seconds())
}

// RecordJob records a finished job.
func RecordJob(jobType, status string, duration time.Duration) {
	JobsProcessed.WithLabelValues(jobType, status).Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}
