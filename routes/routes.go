package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/market-intel/app"
	"github.com/upb/market-intel/handlers"
	"github.com/upb/market-intel/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	// Rate-governor suspensions can last up to a full window
	r.Use(chimw.Timeout(90 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check endpoints
	health := handlers.NewHealthHandler(nil, deps.Logger)
	if deps.DB != nil {
		health = handlers.NewHealthHandler(deps.DB.DB, deps.Logger)
	}
	if deps.Redis != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		})
	}
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Prometheus != nil {
		r.Handle("/metrics", deps.Prometheus.Handler())
	}

	ingestion := handlers.NewIngestionHandler(deps.Collector, deps.Logger)

	// API v1 routes
	r.Route("/api/v1/ingestion", func(r chi.Router) {
		r.Get("/search", ingestion.HandleSearch)
		r.Get("/business/{id}", ingestion.HandleDetails)
		r.Get("/business/{id}/reviews", ingestion.HandleReviews)
		r.Get("/competitors", ingestion.HandleCompetitors)
		r.Get("/categories", ingestion.HandleCategories)
		r.Get("/sources", ingestion.HandleSources)
		r.Get("/budget", ingestion.HandleBudget)
		r.Get("/test", ingestion.HandleTestSources)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
