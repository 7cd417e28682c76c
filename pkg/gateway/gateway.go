// Package gateway is the public API for embedding promptgate in another
// program.
package gateway

import (
	"github.com/tjfontaine/promptgate/internal/config"
	"github.com/tjfontaine/promptgate/internal/runtime"
)

// Gateway owns the store, cache, dispatcher and HTTP server.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// Config is the gateway configuration.
type Config = config.Config

// New creates a Gateway. WithConfig is required.
// Example:
//
//	cfg, err := gateway.LoadConfig("config.yaml")
//	...
//	gw, err := gateway.New(gateway.WithConfig(cfg))
var New = runtime.New

// LoadConfig reads a YAML file and PROMPTGATE_ environment overrides.
var LoadConfig = config.Load

var (
	WithConfig         = runtime.WithConfig
	WithLogger         = runtime.WithLogger
	WithStore          = runtime.WithStore
	WithCache          = runtime.WithCache
	WithRegistry       = runtime.WithRegistry
	WithTracerProvider = runtime.WithTracerProvider
)
