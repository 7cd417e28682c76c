// Package runtime assembles the gateway from configuration and manages its
// lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/promptgate/internal/config"
	"github.com/tjfontaine/promptgate/internal/dispatch"
	"github.com/tjfontaine/promptgate/internal/domain"
	"github.com/tjfontaine/promptgate/internal/provider"
	"github.com/tjfontaine/promptgate/internal/server"
	"github.com/tjfontaine/promptgate/internal/storage"
	"github.com/tjfontaine/promptgate/internal/storage/memory"
	"github.com/tjfontaine/promptgate/internal/storage/redis"
	"github.com/tjfontaine/promptgate/internal/storage/sqlite"
	"github.com/tjfontaine/promptgate/internal/templates"
	"github.com/tjfontaine/promptgate/internal/tokens"
)

// Gateway owns the store, cache, dispatcher and HTTP server.
type Gateway struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          storage.Store
	cache          storage.ResponseCache
	registry       *provider.Registry
	tracerProvider trace.TracerProvider

	dispatcher *dispatch.Dispatcher
	metrics    *server.Metrics
	server     *server.Server
	closers    []io.Closer

	mu      sync.Mutex
	errCh   chan error
	started bool
}

// New builds every component. Nothing listens until Start.
func New(opts ...Option) (*Gateway, error) {
	g := &Gateway{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if g.cfg == nil {
		return nil, errors.New("config required (use WithConfig)")
	}

	if err := g.init(); err != nil {
		g.closeResources()
		return nil, err
	}
	return g, nil
}

func (g *Gateway) init() error {
	if g.store == nil {
		store, err := OpenStore(g.cfg)
		if err != nil {
			return err
		}
		g.store = store
		g.closers = append(g.closers, store)
	}

	if g.cache == nil {
		switch g.cfg.Cache.Type {
		case "redis":
			c, err := redis.NewCache(g.cfg.Cache.RedisURL)
			if err != nil {
				return fmt.Errorf("open redis cache: %w", err)
			}
			g.cache = c
			g.closers = append(g.closers, c)
		default:
			g.cache = g.store
		}
	}

	if g.registry == nil {
		g.registry = NewProviderRegistry(g.cfg)
	}

	lib, err := templates.Load(g.cfg.Templates.Path)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	var estimator domain.TokenEstimator = tokens.NewHeuristic()
	if g.cfg.Tokens.Exact {
		estimator = tokens.New()
	}

	g.metrics = server.NewMetrics()

	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(g.logger),
		dispatch.WithObserver(g.metrics),
		dispatch.WithEstimator(estimator),
	}
	if g.tracerProvider != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithTracerProvider(g.tracerProvider))
	}

	g.dispatcher, err = dispatch.New(dispatch.Config{
		Table:    NewTable(g.cfg),
		Registry: g.registry,
		Cache:    g.cache,
		Log:      g.store,
		Ratings:  g.store,
	}, dispatchOpts...)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	g.server, err = server.New(server.Config{
		Port:           g.cfg.Server.Port,
		RequestTimeout: g.cfg.Server.RequestTimeout,
		Dispatcher:     g.dispatcher,
		Templates:      lib,
		Log:            g.store,
		Ratings:        g.store,
		Metrics:        g.metrics,
	}, g.logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	g.logger.Info("gateway initialized",
		slog.String("storage", g.cfg.Storage.Type),
		slog.String("cache", g.cfg.Cache.Type),
		slog.Int("templates", lib.Len()),
		slog.Bool("exact_tokens", g.cfg.Tokens.Exact),
	)
	return nil
}

// OpenStore opens the store selected by storage.type.
func OpenStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "memory":
		return memory.New(), nil
	case "sqlite", "":
		store, err := sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// Start serves HTTP in the background. Listen failures are reported by Wait.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return errors.New("gateway already started")
	}
	g.started = true
	g.errCh = make(chan error, 1)

	go func() {
		g.errCh <- g.server.Start()
	}()

	g.logger.Info("gateway started",
		slog.Int("port", g.cfg.Server.Port),
		slog.Any("families", g.registry.Families()),
	)
	return nil
}

// Wait blocks until the server stops or ctx is done.
func (g *Gateway) Wait(ctx context.Context) error {
	g.mu.Lock()
	errCh := g.errCh
	g.mu.Unlock()
	if errCh == nil {
		return errors.New("gateway not started")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown drains the server and closes owned resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	var errs []error
	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	errs = append(errs, g.closeResources())

	g.logger.Info("gateway shutdown complete")
	return errors.Join(errs...)
}

func (g *Gateway) closeResources() error {
	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		if err := g.closers[i].Close(); err != nil {
			g.logger.Error("failed to close resource", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	g.closers = nil
	return errors.Join(errs...)
}

// Dispatcher returns the configured dispatcher.
func (g *Gateway) Dispatcher() *dispatch.Dispatcher { return g.dispatcher }

// Server returns the HTTP server.
func (g *Gateway) Server() *server.Server { return g.server }

// Store returns the interaction and rating store.
func (g *Gateway) Store() storage.Store { return g.store }
