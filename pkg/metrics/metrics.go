// Package metrics exposes the Prometheus registry used by matexport and
// writes it to a node_exporter textfile at the end of a run.
// All metrics are defined in their respective packages (client, pagination,
// tokencache, export) and registered via promauto.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by matexport.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all registered metrics in the text exposition format
// to path, for collection by the node_exporter textfile collector. Export
// runs are short-lived cron jobs, so there is no /metrics endpoint to scrape.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	// WriteToTextfile writes to a temp file and renames it.
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - matexport_requests_total{source, status} (Counter): Requests by source and HTTP status
//   - matexport_request_duration_seconds{source} (Histogram): Request duration by source
//   - matexport_errors_total{class} (Counter): Errors by class (client, auth, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - matexport_retries_total{error_class} (Counter): Retry attempts by error class
//   - matexport_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - matexport_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pagination Metrics (pkg/pagination):
//   - matexport_pagination_pages_total{status} (Counter): Pages fetched by outcome
//   - matexport_pagination_records_total (Counter): Records aggregated
//   - matexport_pagination_fetch_duration_seconds{status} (Histogram): Complete fetch duration
//
// Token Cache Metrics (pkg/tokencache):
//   - matexport_token_cache_hits_total{backend} (Counter)
//   - matexport_token_cache_misses_total{backend} (Counter)
//   - matexport_token_cache_errors_total{backend, operation} (Counter)
//
// Export Metrics (pkg/export):
//   - matexport_exports_total{source, status} (Counter): Files written by outcome
//   - matexport_export_records{source} (Gauge): Records in the last export
//
// Example Prometheus Queries:
//
//   # Days since the last successful Duspot export
//   (time() - matexport_export_last_success_timestamp_seconds{source="duspot"}) / 86400
//
//   # Aborted paginated fetches
//   increase(matexport_pagination_fetch_duration_seconds_count{status="error"}[1d])
