// Package api wires the HTTP surface of the sync backend.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storesync/storefront-sync-backend/internal/api/handlers"
	"github.com/storesync/storefront-sync-backend/internal/api/middleware"
	"github.com/storesync/storefront-sync-backend/internal/application/service"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/config"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config      Config
	router      chi.Router
	httpServer  *http.Server
	logger      *slog.Logger
	repo        storage.Repository
	syncService *service.SyncService
	settings    func() config.SyncSettings
}

// NewServer creates a new API server. settings supplies the current
// sync configuration per request. If syncService is nil, the sync
// endpoints are not mounted.
func NewServer(cfg Config, repo storage.Repository, syncService *service.SyncService, settings func() config.SyncSettings, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:      cfg,
		router:      chi.NewRouter(),
		logger:      logger,
		repo:        repo,
		syncService: syncService,
		settings:    settings,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}
	s.router.Use(middleware.CORS(corsConfig))
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Checkpoints
		checkpointsHandler := handlers.NewCheckpointsHandler(s.repo)
		r.Get("/checkpoints/{entity}", checkpointsHandler.Get)
		r.Delete("/checkpoints/{entity}", checkpointsHandler.Clear)

		// Audit log
		logsHandler := handlers.NewLogsHandler(s.repo)
		r.Get("/logs", logsHandler.List)
		r.Get("/logs/{entity}", logsHandler.List)

		// Sync runs
		if s.syncService != nil {
			syncHandler := handlers.NewSyncHandler(s.syncService, s.settings)
			r.Post("/sync/{entity}", syncHandler.StartSync)
			r.Get("/sync/active", syncHandler.ListActiveRuns)
			r.Get("/sync/{runId}", syncHandler.GetRun)
			r.Delete("/sync/{runId}", syncHandler.CancelRun)
		}
	})
}

// Start starts the HTTP server. The write timeout is generous because
// POST /api/sync/{entity} holds the connection open for the whole run.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
