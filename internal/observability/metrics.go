package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	variantsCreated     prometheus.Counter
	variantDrift        prometheus.Counter
	reportIngestsTotal  *prometheus.CounterVec
	gradesAggregated    *prometheus.CounterVec
	batchRunsTotal      prometheus.Counter
	requestsTotal       *prometheus.CounterVec
	requestLatencySecs  *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used by the grading
// pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		variantsCreated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grading_variants_created_total",
			Help: "Total number of variant configs generated.",
		})

		variantDrift = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grading_variant_drift_total",
			Help: "Total number of variant drift detections.",
		})

		reportIngestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_report_ingests_total",
			Help: "Total number of external report ingests by format and outcome.",
		}, []string{"format", "outcome"})

		gradesAggregated = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_grades_aggregated_total",
			Help: "Total number of grade records computed, by letter grade.",
		}, []string{"letter"})

		batchRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grading_batch_runs_total",
			Help: "Total number of batch grading runs executed.",
		})

		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		requestLatencySecs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grading_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		prometheus.MustRegister(
			variantsCreated,
			variantDrift,
			reportIngestsTotal,
			gradesAggregated,
			batchRunsTotal,
			requestsTotal,
			requestLatencySecs,
		)
	})
}

// VariantsCreated exposes the variant creation counter.
func VariantsCreated() prometheus.Counter {
	RegisterMetrics()
	return variantsCreated
}

// VariantDrift exposes the drift detection counter.
func VariantDrift() prometheus.Counter {
	RegisterMetrics()
	return variantDrift
}

// ReportIngests exposes the ingest counter for one format/outcome pair.
func ReportIngests(format, outcome string) prometheus.Counter {
	RegisterMetrics()
	return reportIngestsTotal.WithLabelValues(format, outcome)
}

// GradesAggregated exposes the aggregation counter for one letter grade.
func GradesAggregated(letter string) prometheus.Counter {
	RegisterMetrics()
	return gradesAggregated.WithLabelValues(letter)
}

// BatchRuns exposes the batch run counter.
func BatchRuns() prometheus.Counter {
	RegisterMetrics()
	return batchRunsTotal
}

// Requests exposes the request counter.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// RequestLatency exposes the request latency histogram.
func RequestLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return requestLatencySecs
}
