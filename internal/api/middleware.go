package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/planvault/planvault/pkg/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// ClaimsFromContext returns the verified claims attached by the auth
// middleware, if any.
func ClaimsFromContext(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(auth.Claims)
	return claims, ok
}

// requestLogger tags every request with a request ID, observes duration
// and status, and emits one structured log record per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		duration := time.Since(start)

		httpRequestsTotal.WithLabelValues(route, r.Method, fmt.Sprintf("%d", ww.Status())).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(duration.Seconds())

		s.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("route", route).
			Int("status_code", ww.Status()).
			Dur("duration", duration).
			Msg("Request handled")
	})
}

// requestTimeout bounds every request with a deadline so a hung store
// call cannot hang the request forever.
func (s *Server) requestTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate gates plan routes on a verified bearer token. A missing or
// malformed header is 401; a present credential that fails verification is
// 403. Either way the request never reaches the store.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			authRejectionsTotal.WithLabelValues("unauthorized").Inc()
			writeError(w, http.StatusUnauthorized, "missing or malformed credential", nil)
			return
		}

		claims, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			authRejectionsTotal.WithLabelValues("forbidden").Inc()
			s.logger.Warn().Err(err).Msg("Credential rejected")
			writeError(w, http.StatusForbidden, "credential verification failed", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}
