package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openrelief/newstracker/internal/database"
	"github.com/openrelief/newstracker/internal/events"
	mw "github.com/openrelief/newstracker/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Tracker handlers
	Query   http.HandlerFunc
	Search  http.HandlerFunc
	History http.HandlerFunc

	// Admin handlers
	Reprocess http.HandlerFunc

	// Middleware
	QueryRateLimiter func(http.Handler) http.Handler
	AdminMiddleware  func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
}

func NewRouter(pool *pgxpool.Pool, eventsClient *events.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if eventsClient != nil && !eventsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if eventsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tracker", func(r chi.Router) {
			r.Use(mw.Identity)

			r.Group(func(r chi.Router) {
				if h.QueryRateLimiter != nil {
					r.Use(h.QueryRateLimiter)
				}
				r.Post("/query", h.Query)
			})

			r.Post("/search", h.Search)
			r.Get("/history", h.History)
		})

		// Admin routes — gated by shared key, authorization is the
		// platform gateway's job beyond that
		r.Route("/admin", func(r chi.Router) {
			if h.AdminMiddleware != nil {
				r.Use(h.AdminMiddleware)
			}
			r.Post("/reprocess", h.Reprocess)
		})
	})

	return r
}
