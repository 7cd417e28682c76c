// Package server exposes the dispatcher over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/promptgate/internal/dispatch"
	"github.com/tjfontaine/promptgate/internal/storage"
	"github.com/tjfontaine/promptgate/internal/templates"
)

// DefaultRequestTimeout applies when Config.RequestTimeout is zero.
const DefaultRequestTimeout = 120 * time.Second

// Config holds the server's collaborators.
type Config struct {
	Port           int
	RequestTimeout time.Duration

	Dispatcher *dispatch.Dispatcher
	Templates  *templates.Library
	Log        storage.InteractionLog
	Ratings    storage.RatingLog

	// Metrics is served on /metrics when set.
	Metrics *Metrics
}

type Server struct {
	Router *chi.Mux
	Port   int

	logger     *slog.Logger
	httpServer *http.Server

	dispatcher *dispatch.Dispatcher
	templates  *templates.Library
	log        storage.InteractionLog
	ratings    storage.RatingLog
}

func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("server: dispatcher is required")
	}
	if cfg.Log == nil || cfg.Ratings == nil {
		return nil, errors.New("server: interaction and rating logs are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(timeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "promptgate")
	})

	s := &Server{
		Router:     r,
		Port:       cfg.Port,
		logger:     logger,
		dispatcher: cfg.Dispatcher,
		templates:  cfg.Templates,
		log:        cfg.Log,
		ratings:    cfg.Ratings,
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	r.Post("/chat", s.handleChat)
	r.Post("/rate", s.handleRate)
	r.Get("/stats", s.handleStats)
	r.Get("/models", s.handleModels)
	r.Get("/templates", s.handleTemplates)
	r.Get("/healthz", s.handleHealth)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	return s, nil
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}
