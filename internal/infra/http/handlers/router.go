package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/troublesprouter/freight-crm/internal/infra/http/middleware"
)

type RouterConfig struct {
	Leads       *LeadHandler
	Pool        *PoolHandler
	Sweep       *SweepHandler
	Health      *HealthHandler
	CORSOrigins []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", middleware.HeaderRepID, middleware.HeaderOrganizationID, middleware.HeaderRole},
	}))

	r.Get("/healthz", cfg.Health.Handle)
	r.Get("/livez", cfg.Health.Live)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/cron/inactive", cfg.Sweep.Handle)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session)

		r.Post("/api/leads", cfg.Leads.Create)
		r.Post("/api/leads/{id}/claim", cfg.Leads.Claim)
		r.Post("/api/leads/{id}/release", cfg.Leads.Release)
		r.Post("/api/leads/{id}/swap", cfg.Leads.Swap)

		r.Get("/api/pool", cfg.Pool.Pool)
		r.Get("/api/reps/{repId}/leads", cfg.Pool.Owned)
		r.Get("/api/me/leads", cfg.Pool.Owned)
		r.Get("/api/me/capacity", cfg.Pool.Capacity)
	})

	return r
}
