// Package metrics exposes the Prometheus registry used by the search client.
// All metrics are defined in their respective packages (pagination, client,
// cache, ratelimit) via promauto and land in the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the search client.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Search Metrics (pkg/pagination):
//   - jira_searches_total{result} (Counter): Searches by result (complete, fatal, exhausted, cancelled, error)
//   - jira_search_duration_seconds (Histogram): Wall time of whole searches
//   - jira_search_rounds_total{phase} (Counter): Rounds by phase (discover, fetch)
//   - jira_search_pages_total{outcome} (Counter): Page jobs by outcome
//   - jira_search_page_failures_total{class} (Counter): Soft failures by class
//   - jira_search_retry_backoff_seconds (Histogram): Wait before each retry round
//   - jira_search_retry_exhausted_total{class} (Counter): Searches stopped by an exhausted page
//
// Request Metrics (pkg/client):
//   - jira_requests_total{status} (Counter): Requests by HTTP status or network_error
//   - jira_request_duration_seconds (Histogram): Request duration
//   - jira_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - jira_rate_limit_remaining (Gauge): Server side budget left in the window
//   - jira_rate_limit_waits_total{reason} (Counter): Delayed requests (pause, throttle)
//   - jira_rate_limit_wait_seconds (Histogram): Time spent waiting on the limiter
//
// Cache Metrics (pkg/cache):
//   - jira_cache_hits_total{layer} (Counter): Hits by layer (memory, file, redis)
//   - jira_cache_misses_total{reason} (Counter): Misses by reason (miss, stale, invalid)
//   - jira_cache_size_bytes{layer} (Gauge): Size of the last entry written
//   - jira_cache_errors_total{operation} (Counter): Store errors
//
// Example Prometheus Queries:
//
//   # Share of searches that could not finish
//   sum(rate(jira_searches_total{result!="complete"}[1h])) / sum(rate(jira_searches_total[1h]))
//
//   # Page failure rate by class
//   sum by (class) (rate(jira_search_page_failures_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(jira_request_duration_seconds_bucket[5m]))
//
//   # Budget running low
//   jira_rate_limit_remaining < 20
