package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jira_cache_hits_total",
			Help: "Total number of records cache hits",
		},
		[]string{"layer"}, // "memory", "file", "redis"
	)

	// CacheMisses tracks cache misses by reason
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jira_cache_misses_total",
			Help: "Total number of records cache misses",
		},
		[]string{"reason"}, // "miss", "stale", "invalid"
	)

	// CacheSize tracks the size of the last entry written by layer
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jira_cache_size_bytes",
			Help: "Size of the last records cache entry written in bytes",
		},
		[]string{"layer"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jira_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
