/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for dashboards
  5. Content-Type: JSON responses via go-chi/render

ROUTES:
  /healthz             Liveness
  /metrics             Prometheus exposition (when a handler is given)
  /api/summary/*       Vendor summary
  /api/vendors/*       Vendor rollups
  /api/runs            Run history

SECURITY NOTE:
  No authentication. The server is read-only and meant for an internal
  network.

SEE ALSO:
  - handlers.go: Handler implementations
  - cli/serve.go: Server startup and shutdown
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// RouterOptions tunes NewRouter.
type RouterOptions struct {
	AllowedOrigins []string

	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Route("/summary", func(r chi.Router) {
			r.Get("/", h.ListSummary)
			r.Get("/{vendor}/{brand}", h.GetSummaryRow)
		})
		r.Get("/vendors/{vendor}", h.GetVendor)
		r.Get("/runs", h.ListRuns)
	})

	return r
}
