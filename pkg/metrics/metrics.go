// Package metrics exposes the Prometheus registry the Lever adapter
// registers into. All metrics are defined in their respective packages
// (ratelimit, client, pagination, tools) to maintain modularity and avoid
// circular dependencies.
//
// This package provides the scrape handler and documentation for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every promauto metric of the adapter uses.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer the scrape handler reads from.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - lever_ratelimit_wait_seconds (Histogram): Time callers waited for a slot
//   - lever_ratelimit_acquired_total (Counter): Slots granted
//   - lever_ratelimit_waiting (Gauge): Callers currently waiting
//   - lever_ratelimit_redis_errors_total (Counter): Shared window checks that fell back to the local window
//
// Request Metrics (pkg/client):
//   - lever_requests_total{route, status} (Counter): Attempts by route template and HTTP status
//   - lever_request_duration_seconds{route} (Histogram): Logical request duration including retries
//   - lever_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//   - lever_circuit_breaker_open (Gauge): 1 while the breaker is open
//
// Retry Metrics (pkg/client):
//   - lever_retries_total{error_class} (Counter): Retry attempts by error class
//   - lever_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - lever_retry_exhausted_total{error_class} (Counter): Requests that exhausted max attempts
//
// Pagination Metrics (pkg/pagination):
//   - lever_pages_fetched_total{route} (Counter): List pages fetched
//   - lever_pagination_truncated_total{reason} (Counter): Walks stopped early (max_items, deadline, bad_cursor, empty_page)
//
// Tool Metrics (pkg/tools):
//   - lever_tool_calls_total{tool, outcome} (Counter): Invocations by tool and outcome (ok or an error kind)
//   - lever_tool_call_duration_seconds{tool} (Histogram): Invocation duration
//
// Example Prometheus Queries:
//
//   # Share of time spent waiting on the rate limiter
//   rate(lever_ratelimit_wait_seconds_sum[5m]) / rate(lever_request_duration_seconds_sum[5m])
//
//   # Rate limited responses from Lever (should stay near zero)
//   rate(lever_requests_total{status="429"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(lever_request_duration_seconds_bucket[5m]))
//
//   # Searches hitting the scan bound
//   rate(lever_pagination_truncated_total{reason="max_items"}[1h])
