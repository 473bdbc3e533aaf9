package tokencache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks token cache hits by backend (file, redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matexport_token_cache_hits_total",
			Help: "Total number of token cache hits",
		},
		[]string{"backend"},
	)

	// CacheMisses tracks token cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matexport_token_cache_misses_total",
			Help: "Total number of token cache misses",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks token cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matexport_token_cache_errors_total",
			Help: "Total number of token cache operation errors",
		},
		[]string{"backend", "operation"}, // "get", "set", "delete"
	)
)
