// Package config loads gateway configuration from an optional YAML file and
// PROMPTGATE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys use "__",
// e.g. PROMPTGATE_PROVIDERS__GROQ__API_KEY.
const EnvPrefix = "PROMPTGATE_"

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Cache     CacheConfig     `koanf:"cache"`
	Providers ProvidersConfig `koanf:"providers"`
	Fallbacks FallbacksConfig `koanf:"fallbacks"`
	Tokens    TokensConfig    `koanf:"tokens"`
	Templates TemplatesConfig `koanf:"templates"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type CacheConfig struct {
	Type     string `koanf:"type"` // storage, redis
	RedisURL string `koanf:"redis_url"`
}

type ProvidersConfig struct {
	Groq    GroqConfig    `koanf:"groq"`
	Gemini  GeminiConfig  `koanf:"gemini"`
	Timeout time.Duration `koanf:"timeout"`

	// PublicOnly refuses upstream connections to private or loopback addresses.
	PublicOnly bool `koanf:"public_only"`
}

type GroqConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

type GeminiConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

// FallbacksConfig overrides the per-family fallback model.
type FallbacksConfig struct {
	Groq   string `koanf:"groq"`
	Gemini string `koanf:"gemini"`
}

type TokensConfig struct {
	Exact bool `koanf:"exact"` // use the tiktoken counter before the heuristic
}

type TemplatesConfig struct {
	Path string `koanf:"path"`
}

type LoggingConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
	File  string `koanf:"file"`  // optional rotated log file
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

var defaults = map[string]any{
	"server.port":            8080,
	"server.request_timeout": "120s",
	"storage.type":           "sqlite",
	"storage.sqlite.path":    "promptgate.db",
	"cache.type":             "storage",
	"providers.timeout":      "30s",
	"providers.public_only":  false,
	"tokens.exact":           true,
	"templates.path":         "prompt_templates.json",
	"logging.level":          "info",
	"telemetry.enabled":      false,
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty), then environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Providers.Groq.APIKey = substituteEnvVars(cfg.Providers.Groq.APIKey)
	cfg.Providers.Gemini.APIKey = substituteEnvVars(cfg.Providers.Gemini.APIKey)
	cfg.Cache.RedisURL = substituteEnvVars(cfg.Cache.RedisURL)
	applyLegacyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyLegacyEnv honors the unprefixed variable names older deployments use.
func applyLegacyEnv(cfg *Config) {
	if cfg.Providers.Groq.APIKey == "" {
		cfg.Providers.Groq.APIKey = os.Getenv("GROQ_API_KEY")
	}
	if cfg.Providers.Gemini.APIKey == "" {
		cfg.Providers.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Providers.Groq.BaseURL == "" {
		// GROQ_API_URL is the full completions endpoint.
		if u := os.Getenv("GROQ_API_URL"); u != "" {
			cfg.Providers.Groq.BaseURL = strings.TrimSuffix(strings.TrimSuffix(u, "/"), "/chat/completions")
		}
	}
}

// Validate checks enumerated values and required combinations.
// Missing provider keys are not an error here; they surface per request.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: invalid port %d", c.Server.Port)
	}
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path: required for sqlite storage")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.type: unsupported value %q (want sqlite or memory)", c.Storage.Type)
	}
	switch c.Cache.Type {
	case "storage":
	case "redis":
		if c.Cache.RedisURL == "" {
			return errors.New("cache.redis_url: required for redis cache")
		}
	default:
		return fmt.Errorf("cache.type: unsupported value %q (want storage or redis)", c.Cache.Type)
	}
	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("providers.timeout: must be positive")
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
