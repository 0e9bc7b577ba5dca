package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/countingbot/internal/middleware"
)

// RouterOptions configures access control on /api.
type RouterOptions struct {
	AdminToken  string
	CORSOrigins []string
	// RateLimit is requests per minute per client IP. Zero disables it.
	RateLimit int
}

// NewRouter builds the ops HTTP router.
func NewRouter(h *Handler, health *HealthHandler, opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))

	r.Get("/health", health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(opts.CORSOrigins))
		if opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
		}
		r.Use(middleware.AdminToken(opts.AdminToken))
		h.RegisterRoutes(r)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		Error(w, http.StatusNotFound, "not found")
	})
	return r
}

// RegisterRoutes registers the /api routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/state", h.GetState)
	r.Put("/settings/count-delay", h.SetCountDelay)

	r.Get("/leaderboard", h.GetLeaderboard)
	r.Get("/users/{userID}", h.GetUser)
	r.Get("/daily", h.GetDaily)

	r.Get("/goals/current", h.GetCurrentGoal)
	r.Post("/goals", h.CreateGoal)

	r.Get("/suggestions", h.ListSuggestions)
	r.Post("/suggestions", h.CreateSuggestion)
}
