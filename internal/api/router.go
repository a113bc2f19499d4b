package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sdnpulse/sdnpulse/internal/auth"
	"github.com/sdnpulse/sdnpulse/internal/config"
	"github.com/sdnpulse/sdnpulse/internal/middleware"
	"github.com/sdnpulse/sdnpulse/internal/snapshot"
	"github.com/sdnpulse/sdnpulse/internal/source"
)

// Dependencies holds common dependencies for API handlers
type Dependencies struct {
	Config   *config.Config
	Store    *snapshot.Store
	Sources  []source.Descriptor
	Registry *source.Registry
	Auth     *auth.Service
	Hub      *Hub
	// Metrics is served at Config.Metrics.Path when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter creates and configures the API router
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(chimw.CleanPath)

	// CORS (if enabled)
	if cfg.CORS.Enabled {
		r.Use(middleware.CORS(
			cfg.CORS.AllowedOrigins,
			cfg.CORS.AllowedMethods,
			cfg.CORS.AllowedHeaders,
			cfg.CORS.MaxAgeSeconds,
		))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, r, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	// Initialize handlers
	healthHandler := NewHealthHandler(deps.Store)
	snapshotHandler := NewSnapshotHandler(deps.Store, deps.Sources, deps.Registry)

	// Public routes (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	if deps.Metrics != nil && cfg.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Metrics.Path, deps.Metrics)
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		authEnabled := cfg.Auth.Enabled && deps.Auth != nil
		if authEnabled {
			r.Post("/login", NewAuthHandler(deps.Auth).Login)
		}

		r.Group(func(r chi.Router) {
			if authEnabled {
				r.Use(middleware.JWTAuth(deps.Auth))
			}

			r.Get("/snapshot", snapshotHandler.Get)
			r.Get("/kinds", snapshotHandler.ListKinds)

			r.Route("/sources", func(r chi.Router) {
				r.Get("/", snapshotHandler.ListSources)
				r.Get("/{id}", snapshotHandler.GetSource)
			})

			if deps.Hub != nil {
				r.Get("/stream", deps.Hub.ServeWs)
			}
		})
	})

	return r
}
