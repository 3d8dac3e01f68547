/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/accounts/*   Account, money ops, goals, scheduled transfers
  /api/requests/*   Money-request lifecycle
  /api/otp/*        High-value confirmation
  /api/admin/*      Admin operations

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

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
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Get("/billers", h.ListBillers)

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.Signup)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetAccount)
				r.Get("/statement", h.Statement)
				r.Get("/notifications", h.ListNotifications)

				r.Post("/withdraw", h.Withdraw)
				r.Post("/deposit", h.Deposit)
				r.Post("/transfer", h.Transfer)
				r.Post("/billpay", h.PayBill)

				r.Route("/goals", func(r chi.Router) {
					r.Get("/", h.ListGoals)
					r.Post("/", h.CreateGoal)
					r.Post("/{goalID}/fund", h.FundGoal)
				})

				r.Route("/requests", func(r chi.Router) {
					r.Get("/", h.Inbox)
					r.Get("/sent", h.SentRequests)
				})

				r.Route("/scheduled", func(r chi.Router) {
					r.Get("/", h.ListScheduled)
					r.Post("/", h.CreateScheduled)
					r.Delete("/{sid}", h.DeleteScheduled)
					r.Post("/run-due", h.RunDue)
				})

				r.Get("/gift", h.GiftEligibility)
				r.Post("/gift", h.ClaimGift)
			})
		})

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.SendRequest)
			r.Post("/{id}/respond", h.RespondToRequest)
		})

		r.Route("/otp", func(r chi.Router) {
			r.Post("/confirm", h.ConfirmOTP)
			r.Post("/cancel", h.CancelOTP)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/accounts", h.ListAccounts)
			r.Delete("/accounts/{id}", h.DeleteAccount)
			r.Post("/accounts/{id}/adjust", h.AdjustBalance)
			r.Post("/interest", h.RunInterest)
			r.Get("/audit", h.ListAudit)
			r.Get("/stats", h.Stats)
			r.Post("/seed", h.SeedDemo)
		})
	})

	return r
}
