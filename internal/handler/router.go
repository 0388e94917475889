package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pkordes/tripplanner/internal/middleware"
)

// RouterConfig carries the HTTP-level settings of the router.
type RouterConfig struct {
	CORSOrigins  []string
	MaxBodyBytes int64
	// RateLimit guards the plan-creating endpoints. Nil disables limiting.
	RateLimit *middleware.RateLimiter
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter wires s into a chi router.
//
// Middleware order: RequestID → RealIP → SlogLogger → Recoverer → CORS.
// The recoverer answers panics with the JSON error body.
// CORS sits inside the recoverer so even a recovered panic carries the headers.
func NewRouter(s *Server, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(middleware.NewRecoverer(logger))
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		if cfg.MaxBodyBytes > 0 {
			r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
		}
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit.Limit)
		}
		r.Post("/plans", s.CreatePlan)
		r.Post("/travel-plans", s.CreatePlan)
	})
	r.Options("/plans", preflight)
	r.Options("/travel-plans", preflight)

	r.Get("/plans", s.ListPlans)
	r.Get("/plans/{planId}", s.GetPlan)
	r.Delete("/plans/{planId}", s.DeletePlan)

	r.Get("/ws", s.WebSocket)
	return r
}

// preflight answers OPTIONS requests that rs/cors passed through, e.g. ones
// without an Origin header.
func preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
