// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/duet/internal/api"
	"github.com/stwalsh4118/duet/internal/composition"
	"github.com/stwalsh4118/duet/internal/config"
	"github.com/stwalsh4118/duet/internal/db"
	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/media"
	"github.com/stwalsh4118/duet/internal/middleware"
	"github.com/stwalsh4118/duet/internal/session"
)

// Server represents the HTTP server
type Server struct {
	config         *config.Config
	db             *db.DB
	repos          *db.Repositories
	prober         *media.GuardedProber
	compositions   *composition.Service
	sessionManager *session.Manager
	router         *gin.Engine
	server         *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, database *db.DB) *Server {
	repos := db.NewRepositories(database)

	ffprobe := media.NewFFprobe(cfg.Probe.FFprobePath, cfg.Probe.Timeout)
	if err := ffprobe.CheckInstalled(); err != nil {
		logger.Log.Warn().
			Str("path", cfg.Probe.FFprobePath).
			Msg("ffprobe not found; only HLS sources will load")
	}
	prober := media.NewGuardedProber(
		media.NewRouter(media.NewHLSProber(cfg.Probe.HTTPTimeout), ffprobe),
		cfg.Probe.FailureThreshold,
		cfg.Probe.ResetTimeout,
	)

	return &Server{
		config:         cfg,
		db:             database,
		repos:          repos,
		prober:         prober,
		compositions:   composition.NewService(database, repos),
		sessionManager: session.NewManager(prober, cfg.Playback, cfg.Session),
	}
}

// Handler builds the router without starting the listener
func (s *Server) Handler() http.Handler {
	if s.router == nil {
		s.setupRouter()
	}
	return s.router
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestLogger())
	s.router.Use(gin.Recovery())

	// Presentation layers run on other origins
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowHeaders(middleware.RequestIDHeader)
	corsConfig.AddExposeHeaders(middleware.RequestIDHeader)
	s.router.Use(cors.New(corsConfig))

	apiGroup := s.router.Group("/api")

	api.SetupHealthRoutes(apiGroup, s.db, s.prober.Breaker(), s.sessionManager)
	api.SetupCompositionRoutes(apiGroup, s.compositions)
	api.SetupSessionRoutes(apiGroup, s.sessionManager, s.compositions)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.Handler()

	if err := s.sessionManager.Start(); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	// Event streams reset their own deadlines after the upgrade
	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// Close sessions first so event streams end and their handlers return
	if s.sessionManager != nil {
		s.sessionManager.Stop()
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
