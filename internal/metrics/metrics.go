// Package metrics provides Prometheus instrumentation for the match engine.
// It exposes counters for request throughput, histograms for scoring latency
// and pool sizes, and a gauge for the loaded catalog size.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts engine requests, labeled by operation
	// ("compat", "candidates", "questions") and outcome ("ok", "error",
	// "rate_limited", "invalid").
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchengine_requests_total",
		Help: "Total number of engine requests processed",
	}, []string{"op", "outcome"})

	// CandidatesScored counts pairwise compatibility computations.
	CandidatesScored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchengine_candidates_scored_total",
		Help: "Total number of pairwise compatibility computations",
	})

	// ScoringDuration records end-to-end candidate selection latency in seconds.
	ScoringDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matchengine_selection_duration_seconds",
		Help:    "Candidate selection latency in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})

	// CandidatePoolSize records how many candidates survived filtering per request.
	CandidatePoolSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matchengine_candidate_pool_size",
		Help:    "Eligible candidates analyzed per selection request",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})

	// CatalogQuestions tracks the number of questions in the loaded catalog.
	CatalogQuestions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "matchengine_catalog_questions",
		Help: "Number of active questions in the loaded catalog snapshot",
	})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		CandidatesScored,
		ScoringDuration,
		CandidatePoolSize,
		CatalogQuestions,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
