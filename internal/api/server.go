// Package api exposes the plan service over HTTP with conditional-request
// semantics, bearer-token authentication and Prometheus instrumentation.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/planvault/planvault/pkg/auth"
	"github.com/planvault/planvault/pkg/logging"
	"github.com/planvault/planvault/pkg/plan"
)

// DefaultRequestTimeout bounds a single request, store round trips included.
const DefaultRequestTimeout = 10 * time.Second

// Pinger reports whether the backing store is reachable. Used by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server construction options.
type Config struct {
	// RequestTimeout bounds each request (default DefaultRequestTimeout).
	RequestTimeout time.Duration
}

// Server wires the plan service, token verifier and store health check
// into an http.Handler.
type Server struct {
	plans    *plan.Service
	verifier auth.Verifier
	health   Pinger
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewServer builds the router. All /v1/plans routes require a verified
// bearer token; /health and /metrics are open.
func NewServer(plans *plan.Service, verifier auth.Verifier, health Pinger, cfg Config) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	s := &Server{
		plans:    plans,
		verifier: verifier,
		health:   health,
		timeout:  cfg.RequestTimeout,
		logger:   logging.NewLogger("api"),
	}

	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(s.requestTimeout)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/plans", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/", s.handleCreate)
		r.Get("/{key}", s.handleGet)
		r.Put("/{key}", s.handleReplace)
		r.Patch("/{key}", s.handlePatch)
		r.Delete("/{key}", s.handleDelete)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.Error().Err(err).Msg("Health check failed")
			writeError(w, http.StatusServiceUnavailable, "store unreachable", nil)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
