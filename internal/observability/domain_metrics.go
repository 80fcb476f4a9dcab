package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	federationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedquery_federation_requests_total",
			Help: "Total number of federation requests by merge strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)
	subQueryDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fedquery_subquery_duration_ms",
			Help:    "Sub-query execution latency per engine in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"engine"},
	)
	mergeDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fedquery_merge_duration_ms",
			Help:    "Merge phase latency in the embedded engine in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)
	cartesianFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fedquery_cartesian_fallback_total",
			Help: "Total number of joins merged without conditions as a Cartesian product.",
		},
	)
	federationTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fedquery_federation_timeouts_total",
			Help: "Total number of federation requests aborted by timeout.",
		},
	)
	resultCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fedquery_result_cache_hits_total",
			Help: "Total number of federation responses served from the result cache.",
		},
	)
	translationCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fedquery_translation_cache_hits_total",
			Help: "Total number of dialect translations served from cache.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		federationRequestsTotal,
		subQueryDurationMs,
		mergeDurationMs,
		cartesianFallbackTotal,
		federationTimeoutsTotal,
		resultCacheHitsTotal,
		translationCacheHitsTotal,
	)
}

func ObserveFederationRequest(strategy, outcome string) {
	federationRequestsTotal.WithLabelValues(strategy, outcome).Inc()
}

func ObserveSubQuery(engine string, elapsed time.Duration) {
	subQueryDurationMs.WithLabelValues(engine).Observe(float64(elapsed.Milliseconds()))
}

func ObserveMerge(elapsed time.Duration) {
	mergeDurationMs.Observe(float64(elapsed.Milliseconds()))
}

func IncrementCartesianFallback() {
	cartesianFallbackTotal.Inc()
}

func IncrementFederationTimeout() {
	federationTimeoutsTotal.Inc()
}

func IncrementResultCacheHit() {
	resultCacheHitsTotal.Inc()
}

func IncrementTranslationCacheHit() {
	translationCacheHitsTotal.Inc()
}
