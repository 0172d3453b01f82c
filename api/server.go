/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions. This
  is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/billing/*      Fee generation and results
  /api/workers/*      Worker records
  /api/employers/*    Employer records
  /api/deployments/*  Placements and rate schedules
  /api/scenarios/*    Demo data loaders
  /metrics            Prometheus metrics

SECURITY NOTE:
  Authentication is handled upstream; all endpoints here are unauthenticated.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Billing routes
		r.Route("/billing", func(r chi.Router) {
			r.Post("/generate", h.GenerateMonthlyFees)
			r.Get("/lines", h.ListBillLines)
			r.Get("/runs", h.ListBillingRuns)
		})

		// Worker routes
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", h.ListWorkers)
			r.Post("/", h.CreateWorker)
		})

		// Employer routes
		r.Route("/employers", func(r chi.Router) {
			r.Get("/", h.ListEmployers)
			r.Post("/", h.CreateEmployer)
		})

		// Deployment routes
		r.Route("/deployments", func(r chi.Router) {
			r.Get("/", h.ListDeployments)
			r.Post("/", h.CreateDeployment)
			r.Get("/{id}", h.GetDeployment)
			r.Post("/{id}/end", h.EndDeployment)
			r.Get("/{id}/schedule", h.GetRateSchedule)
			r.Put("/{id}/schedule", h.PutRateSchedule)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	return r
}
