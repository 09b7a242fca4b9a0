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
  /api/guards/*         Guard directory
  /api/installations/*  Installation directory
  /api/roles/*          Role rotation directory
  /api/posts/*          Posts, schedules, attendance, leaves
  /api/schedules/*      Monthly generation
  /api/terminations     Termination processing
  /api/extra-shifts/*   Extra shift ledger and payment batches
  /api/scenarios/*      Demo scenarios

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
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Directory routes
		r.Route("/guards", func(r chi.Router) {
			r.Post("/", h.CreateGuard)
			r.Get("/{id}", h.GetGuard)
		})

		r.Route("/installations", func(r chi.Router) {
			r.Post("/", h.CreateInstallation)
			r.Get("/{id}", h.GetInstallation)
		})

		// Role rotation directory
		r.Route("/roles", func(r chi.Router) {
			r.Post("/", h.CreateRolePattern)
			r.Get("/{id}", h.GetRolePattern)
		})

		// Post routes (post = one coverage slot, not HTTP POST)
		r.Route("/posts", func(r chi.Router) {
			r.Get("/", h.ListPosts)
			r.Post("/", h.CreatePost)
			r.Get("/{id}", h.GetPost)
			r.Post("/{id}/assign", h.AssignGuard)
			r.Get("/{id}/schedule", h.GetSchedule)
			r.Post("/{id}/attendance", h.ConfirmAttendance)
			r.Post("/{id}/leaves", h.ApplyLeave)
		})

		// Schedule generation
		r.Route("/schedules", func(r chi.Router) {
			r.Post("/generate", h.GenerateSchedule)
		})

		// Termination processing
		r.Post("/terminations", h.ProcessTermination)

		// Extra shift ledger
		r.Route("/extra-shifts", func(r chi.Router) {
			r.Get("/", h.QueryExtraShifts)
			r.Post("/", h.CreateExtraShift)
			r.Delete("/{id}", h.DeleteExtraShift)
			r.Post("/batches", h.AttachToBatch)
			r.Post("/batches/{id}/pay", h.MarkBatchPaid)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
