package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthCheckTimeout bounds each dependency check in GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health and metrics (no auth required for basic monitoring)
		r.Get("/health", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/flows", func(r chi.Router) {
				r.Post("/", s.handleStartFlow)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.rateLimitMiddleware).Post("/", s.handleConfigureFlow)
					r.Delete("/", s.handleAbortFlow)
				})
			})

			r.Route("/entries", func(r chi.Router) {
				r.Get("/", s.handleListEntries)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetEntry)
					r.Delete("/", s.handleDeleteEntry)
				})
			})

			r.Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// handleHealth returns the server health status and the state of each
// registered dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(s.checks))

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
