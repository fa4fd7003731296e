package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the refresher and the loader

var (
	// Fetch metrics
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseball_db_fetches_total",
			Help: "Total number of period fetches by outcome",
		},
		[]string{"table", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "baseball_db_fetch_duration_seconds",
			Help:    "Duration of period fetch and persist in seconds",
			Buckets: []float64{.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"table"},
	)

	FetchedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseball_db_fetched_rows_total",
			Help: "Total number of rows persisted to period files",
		},
		[]string{"table"},
	)

	// Coverage metrics
	OutstandingPeriods = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "baseball_db_outstanding_periods",
			Help: "Number of periods not yet covered after the last resolution",
		},
		[]string{"table"},
	)

	CoveredPeriods = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "baseball_db_covered_periods",
			Help: "Number of periods covered after the last resolution",
		},
		[]string{"table"},
	)

	FilesRemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseball_db_files_removed_total",
			Help: "Total number of cache files removed by reason",
		},
		[]string{"table", "reason"},
	)

	// Load metrics
	StatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseball_db_statements_total",
			Help: "Total number of load statements executed",
		},
		[]string{"kind", "status"},
	)

	StatementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "baseball_db_statement_duration_seconds",
			Help:    "Duration of load statements in seconds",
			Buckets: []float64{.01, .1, .5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"kind"},
	)

	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseball_db_runs_total",
			Help: "Total number of refresh and load runs",
		},
		[]string{"type", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "baseball_db_run_duration_seconds",
			Help:    "Duration of refresh and load runs in seconds",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600},
		},
		[]string{"type"},
	)

	LastSuccessfulRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "baseball_db_last_successful_run_timestamp",
			Help: "Timestamp of last successful run",
		},
		[]string{"type"},
	)
)

// RecordFetch records one period fetch
func RecordFetch(table, status string, duration float64, rows int) {
	FetchesTotal.WithLabelValues(table, status).Inc()
	FetchDuration.WithLabelValues(table).Observe(duration)
	if rows > 0 {
		FetchedRows.WithLabelValues(table).Add(float64(rows))
	}
}

// RecordCoverage records the outcome of a coverage resolution
func RecordCoverage(table string, covered, outstanding int) {
	CoveredPeriods.WithLabelValues(table).Set(float64(covered))
	OutstandingPeriods.WithLabelValues(table).Set(float64(outstanding))
}

// RecordRemoved records cache files removed for reason (invalidated, malformed)
func RecordRemoved(table, reason string, count int) {
	if count > 0 {
		FilesRemovedTotal.WithLabelValues(table, reason).Add(float64(count))
	}
}

// RecordStatement records a load statement
func RecordStatement(kind, status string, duration float64) {
	StatementsTotal.WithLabelValues(kind, status).Inc()
	StatementDuration.WithLabelValues(kind).Observe(duration)
}

// RecordRun records a refresh or load run
func RecordRun(runType, status string, duration float64) {
	RunsTotal.WithLabelValues(runType, status).Inc()
	RunDuration.WithLabelValues(runType).Observe(duration)

	if status == "success" {
		LastSuccessfulRun.WithLabelValues(runType).SetToCurrentTime()
	}
}
