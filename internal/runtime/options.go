package runtime

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/promptgate/internal/config"
	"github.com/tjfontaine/promptgate/internal/provider"
	"github.com/tjfontaine/promptgate/internal/storage"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithConfig sets the loaded configuration. Required.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		if cfg == nil {
			return errors.New("config must not be nil")
		}
		g.cfg = cfg
		return nil
	}
}

// WithLogger sets the logger for the gateway and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		if logger != nil {
			g.logger = logger
		}
		return nil
	}
}

// WithStore replaces the store selected by storage.type.
// The gateway does not close an injected store.
func WithStore(store storage.Store) Option {
	return func(g *Gateway) error {
		g.store = store
		return nil
	}
}

// WithCache replaces the cache selected by cache.type.
func WithCache(cache storage.ResponseCache) Option {
	return func(g *Gateway) error {
		g.cache = cache
		return nil
	}
}

// WithRegistry replaces the provider registry built from config.
func WithRegistry(reg *provider.Registry) Option {
	return func(g *Gateway) error {
		g.registry = reg
		return nil
	}
}

// WithTracerProvider sets the tracer provider used for provider spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) error {
		g.tracerProvider = tp
		return nil
	}
}
