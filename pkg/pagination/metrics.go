package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched counts page requests by outcome (ok, error).
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matexport_pagination_pages_total",
		Help: "Total pages fetched by outcome",
	}, []string{"status"})

	// RecordsAggregated counts records returned by successful fetches.
	RecordsAggregated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matexport_pagination_records_total",
		Help: "Total records aggregated from paginated endpoints",
	})

	// FetchDuration observes the wall time of complete FetchAll calls.
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matexport_pagination_fetch_duration_seconds",
		Help:    "Duration of complete paginated fetches by outcome",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"status"})
)
