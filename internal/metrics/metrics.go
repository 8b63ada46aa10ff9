// Package metrics exposes Prometheus collectors for the import pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished import jobs by final status and error code.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeflow_import_jobs_total",
			Help: "Import jobs that reached a terminal state.",
		},
		[]string{"status", "error_code"},
	)

	// JobsRunning tracks workers currently holding a slot.
	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradeflow_import_jobs_running",
			Help: "Import jobs currently being processed.",
		},
	)

	// JobDurationSeconds observes wall time from slot acquisition to terminal state.
	JobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradeflow_import_job_duration_seconds",
			Help:    "Duration of import jobs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14), // 0.5s to ~68min
		},
		[]string{"status"},
	)

	// RecordsTotal counts records by outcome: parsed, rejected, inserted, duplicate, error.
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeflow_import_records_total",
			Help: "Records seen by the import pipeline, by outcome.",
		},
		[]string{"outcome"},
	)

	// EnrichmentRequestsTotal counts company enrichment enqueue attempts by result.
	EnrichmentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeflow_company_enrichment_requests_total",
			Help: "Company enrichment requests sent to the remote queue.",
		},
		[]string{"result"},
	)

	// AnalysisRequestsTotal counts file analysis calls by result.
	AnalysisRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeflow_file_analysis_requests_total",
			Help: "File analysis service calls, by result.",
		},
		[]string{"result"},
	)
)

// Record outcomes used with RecordsTotal.
const (
	OutcomeParsed    = "parsed"
	OutcomeRejected  = "rejected"
	OutcomeInserted  = "inserted"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)
