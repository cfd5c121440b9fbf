/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/organizations/*  Organization registry
  /api/accounts/*       Accounts, transactions, audit trail
  /api/sessions/*       Class sessions and status transitions
  /api/transactions/*   Transaction deletion
  /api/reports/*        Earnings reports

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:4200", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Organization routes
		r.Route("/organizations", func(r chi.Router) {
			r.Get("/", h.ListOrganizations)
			r.Post("/", h.CreateOrganization)
			r.Get("/{id}", h.GetOrganization)
		})

		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Delete("/{id}", h.DeleteAccount)
			r.Post("/{id}/transactions", h.ApplyTransaction)
			r.Get("/{id}/transactions", h.ListTransactions)
			r.Get("/{id}/audit", h.ListAudit)
		})

		// Session routes
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Get("/{id}", h.GetSession)
			r.Put("/{id}/status", h.UpdateStatus)
			r.Delete("/{id}", h.DeleteSession)
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Delete("/{id}", h.DeleteTransaction)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/earnings", h.EarningsReport)
			r.Get("/earnings/organizations/{id}", h.OrganizationEarningsReport)
		})
	})

	return r
}
