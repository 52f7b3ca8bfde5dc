// Package metrics provides the centralized Prometheus metrics registry for
// the plan store. All metrics are defined in their respective packages
// (internal/api, pkg/plan, pkg/store) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registerer used by the plan store.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// HTTP Metrics (internal/api):
//   - planvault_http_requests_total{route, method, status} (Counter): Requests by route and status
//   - planvault_http_request_duration_seconds{route} (Histogram): Request duration by route
//   - planvault_auth_rejections_total{reason} (Counter): Requests rejected by the auth gate
//
// Plan Metrics (pkg/plan):
//   - planvault_precondition_failures_total{operation} (Counter): Mutations rejected by If-Match
//   - planvault_create_conflicts_total (Counter): Creates rejected on an existing key
//   - planvault_not_modified_total (Counter): Reads short-circuited by If-None-Match
//   - planvault_validation_failures_total{operation} (Counter): Documents rejected by the schema gate
//
// Store Metrics (pkg/store):
//   - planvault_store_hits_total (Counter): Reads that found a record
//   - planvault_store_misses_total (Counter): Reads for absent keys
//   - planvault_store_written_bytes (Gauge): Bytes written to the store
//   - planvault_store_errors_total{operation} (Counter): Store operation errors
//
// Example Prometheus Queries:
//
//   # Conflict rate under concurrent editing
//   rate(planvault_precondition_failures_total[5m])
//
//   # 304 ratio on reads
//   rate(planvault_not_modified_total[5m]) /
//   rate(planvault_http_requests_total{route="/v1/plans/{key}", method="GET"}[5m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(planvault_http_request_duration_seconds_bucket[5m]))
//
//   # Store availability
//   rate(planvault_store_errors_total[5m])
