// Package metrics exposes Prometheus collectors for the retrieval engine.
//
// Collectors are registered with the default registry on first use. Callers that
// serve a custom registry can register Collectors() themselves instead.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	queryLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quarry_query_latency_ms",
		Help:    "Latency of whole queries in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2000, 3000, 5000, 8000, 12000, 20000},
	}, []string{"task"})

	queriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quarry_queries_total",
		Help: "Queries by task type and outcome (ok, partial, error)",
	}, []string{"task", "outcome"})

	algorithmLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quarry_algorithm_latency_ms",
		Help:    "Latency of retrieval algorithm and enhancement runs in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000},
	}, []string{"algorithm"})

	algorithmResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quarry_algorithm_results",
		Help:    "Number of candidates produced by a retrieval algorithm",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	}, []string{"algorithm"})

	fanoutFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quarry_fanout_failures_total",
		Help: "Failed sub-queries inside a fan-out",
	}, []string{"algorithm"})

	classifierFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quarry_classifier_fallbacks_total",
		Help: "Queries whose task type fell back to general retrieval",
	})

	validationVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quarry_validation_verdicts_total",
		Help: "Self-consistency verdicts (keep, demote, reject)",
	}, []string{"verdict"})

	recordsEmbedded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quarry_records_embedded_total",
		Help: "Records embedded by ingestion and generation migration",
	}, []string{"operation", "kind"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(Collectors()...)
	})
}

// ObserveQuery records latency and outcome of one query.
func ObserveQuery(task string, start time.Time, outcome string) {
	ensureRegistered()
	queryLatency.WithLabelValues(task).Observe(float64(time.Since(start).Milliseconds()))
	queriesTotal.WithLabelValues(task, outcome).Inc()
}

// ObserveAlgorithm records latency and result size of an algorithm run.
func ObserveAlgorithm(name string, start time.Time, results int) {
	ensureRegistered()
	algorithmLatency.WithLabelValues(name).Observe(float64(time.Since(start).Milliseconds()))
	algorithmResults.WithLabelValues(name).Observe(float64(results))
}

// AddFanoutFailures counts failed sub-queries of an algorithm.
func AddFanoutFailures(algorithm string, n int) {
	if n <= 0 {
		return
	}
	ensureRegistered()
	fanoutFailures.WithLabelValues(algorithm).Add(float64(n))
}

// IncClassifierFallback counts a classification that fell back to general retrieval.
func IncClassifierFallback() {
	ensureRegistered()
	classifierFallbacks.Inc()
}

// IncValidationVerdict counts one self-consistency verdict.
func IncValidationVerdict(verdict string) {
	ensureRegistered()
	validationVerdicts.WithLabelValues(verdict).Inc()
}

// AddEmbedded counts records embedded by an operation (ingest, reembed).
func AddEmbedded(operation, kind string, n int) {
	if n <= 0 {
		return
	}
	ensureRegistered()
	recordsEmbedded.WithLabelValues(operation, kind).Add(float64(n))
}

// Collectors exposes all collectors for external registration with a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		queryLatency, queriesTotal, algorithmLatency, algorithmResults,
		fanoutFailures, classifierFallbacks, validationVerdicts, recordsEmbedded,
	}
}
