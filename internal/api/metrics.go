package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the HTTP surface.
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planvault_http_requests_total",
		Help: "Total HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planvault_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds by route",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"route"})

	authRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planvault_auth_rejections_total",
		Help: "Requests rejected before reaching the store, by reason",
	}, []string{"reason"}) // "unauthorized", "forbidden"
)
