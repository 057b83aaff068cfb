// Package api provides HTTP API server components.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/memkeep/memkeep/config"
	"github.com/memkeep/memkeep/pkg/api/handlers"
	"github.com/memkeep/memkeep/pkg/api/middleware"
	"github.com/memkeep/memkeep/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Memory handles memory CRUD endpoints
	Memory *handlers.MemoryHandler

	// Recall handles recall query endpoints
	Recall *handlers.RecallHandler

	// Repair handles embedding repair endpoints
	Repair *handlers.RepairHandler

	// Usage handles daily usage ledger endpoints
	Usage *handlers.UsageHandler

	// Stats handles per-user statistics endpoints
	Stats *handlers.StatsHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.Timeout(cfg.Server.HTTP.RequestTimeout))

	// Register routes
	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			if handlers.Memory != nil {
				r.Route("/memories", func(r chi.Router) {
					r.Post("/", handlers.Memory.Create)
					r.Get("/", handlers.Memory.List)
					r.Get("/{id}", handlers.Memory.Get)
					r.Patch("/{id}", handlers.Memory.Update)
					r.Delete("/{id}", handlers.Memory.Delete)
					r.Post("/{id}/archive", handlers.Memory.Archive)
				})
			}

			if handlers.Recall != nil {
				r.Get("/recall", handlers.Recall.Recall)
			}
			if handlers.Repair != nil {
				r.Post("/repair", handlers.Repair.RepairUser)
			}
			if handlers.Usage != nil {
				r.Get("/usage", handlers.Usage.DailyUsage)
			}
			if handlers.Stats != nil {
				r.Get("/stats", handlers.Stats.Stats)
			}
		})

		// Global repair sweeps all users sequentially.
		if handlers.Repair != nil {
			r.Post("/repair", handlers.Repair.RepairAll)
		}
	})

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}
}
