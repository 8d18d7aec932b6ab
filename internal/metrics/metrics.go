package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch orchestration metrics
var (
	// FetchCyclesTotal counts fetch-and-fuse cycles by outcome.
	FetchCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_fetch_cycles_total",
			Help: "Total number of fetch-and-fuse cycles executed",
		},
		[]string{"status", "forced"},
	)

	// FetchCycleDuration tracks end-to-end fetch-and-fuse latency.
	FetchCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "weather_fetch_cycle_duration_seconds",
			Help:    "Duration of fetch-and-fuse cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DedupJoinsTotal counts callers that joined an in-flight fetch instead
	// of starting their own.
	DedupJoinsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weather_dedup_joins_total",
			Help: "Callers that attached to an already in-flight fetch",
		},
	)
)

// Provider metrics
var (
	// ProviderFetchesTotal counts individual provider operations by outcome.
	ProviderFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_provider_fetches_total",
			Help: "Provider fetch operations by provider, operation and status",
		},
		[]string{"provider", "operation", "status"},
	)

	// ConflictsTotal counts scalar conflicts detected during fusion.
	ConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_fusion_conflicts_total",
			Help: "Scalar disagreements between providers exceeding the threshold",
		},
		[]string{"field"},
	)
)

// Cache metrics
var (
	// CacheOpsTotal counts cache loads and stores by result.
	CacheOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_cache_ops_total",
			Help: "Cache operations by operation and result",
		},
		[]string{"operation", "result"},
	)
)
