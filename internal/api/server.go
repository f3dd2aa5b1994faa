package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reflow/internal/archive"
	"reflow/internal/config"
	"reflow/internal/export"
	"reflow/internal/history"
	"reflow/internal/logging"
	"reflow/internal/pipeline"
	"reflow/internal/registry"
	"reflow/internal/tasks"
)

// Server serves the session API on the configured bind address.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *gin.Engine
	srv      *http.Server
	registry *registry.Registry
	codec    *archive.Codec
	tasks    *tasks.Manager
	pipeline *pipeline.Orchestrator
	exports  *export.Registry
	history  *history.Store
}

// Deps carries the wired service collaborators for the server.
type Deps struct {
	Registry *registry.Registry
	Codec    *archive.Codec
	Tasks    *tasks.Manager
	Pipeline *pipeline.Orchestrator
	Exports  *export.Registry
	History  *history.Store
}

// NewServer builds the HTTP server around the given collaborators.
func NewServer(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: deps.Registry,
		codec:    deps.Codec,
		tasks:    deps.Tasks,
		pipeline: deps.Pipeline,
		exports:  deps.Exports,
		history:  deps.History,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(logger))
	engine.Use(MaxBodySize(cfg.Store.MaxUploadMB * 1024 * 1024))
	engine.Use(CORS())
	s.engine = engine
	s.registerRoutes()

	s.srv = &http.Server{
		Addr:              cfg.Paths.APIBind,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the underlying router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until the server stops. Graceful shutdown via
// Shutdown is reported as a nil error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("api listening", logging.String("bind", s.srv.Addr))
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
