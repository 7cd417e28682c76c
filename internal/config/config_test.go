package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv unsets variables that would leak host configuration into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"GROQ_API_KEY", "GEMINI_API_KEY", "GROQ_API_URL"} {
		t.Setenv(name, "")
	}
}

func missingPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(missingPath(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 120*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want 120s", cfg.Server.RequestTimeout)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.SQLite.Path != "promptgate.db" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Cache.Type != "storage" {
		t.Errorf("Cache.Type = %q, want storage", cfg.Cache.Type)
	}
	if cfg.Providers.Timeout != 30*time.Second {
		t.Errorf("Providers.Timeout = %v, want 30s", cfg.Providers.Timeout)
	}
	if !cfg.Tokens.Exact {
		t.Error("Tokens.Exact = false, want true")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_GEMINI_KEY", "from-env-ref")
	t.Setenv("PROMPTGATE_SERVER__PORT", "9000")
	t.Setenv("PROMPTGATE_FALLBACKS__GROQ", "llama-3.3-70b-versatile")

	path := writeConfig(t, `
server:
  port: 7000
storage:
  type: memory
providers:
  timeout: 5s
  groq:
    api_key: groq-file-key
  gemini:
    api_key: ${TEST_GEMINI_KEY}
fallbacks:
  gemini: gemini-2.0-flash
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want env override 9000", cfg.Server.Port)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
	if cfg.Providers.Timeout != 5*time.Second {
		t.Errorf("Providers.Timeout = %v, want 5s", cfg.Providers.Timeout)
	}
	if cfg.Providers.Groq.APIKey != "groq-file-key" {
		t.Errorf("Groq.APIKey = %q", cfg.Providers.Groq.APIKey)
	}
	if cfg.Providers.Gemini.APIKey != "from-env-ref" {
		t.Errorf("Gemini.APIKey = %q, want substituted value", cfg.Providers.Gemini.APIKey)
	}
	if cfg.Fallbacks.Groq != "llama-3.3-70b-versatile" || cfg.Fallbacks.Gemini != "gemini-2.0-flash" {
		t.Errorf("Fallbacks = %+v", cfg.Fallbacks)
	}
}

func TestLoad_LegacyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "legacy-groq")
	t.Setenv("GEMINI_API_KEY", "legacy-gemini")
	t.Setenv("GROQ_API_URL", "https://proxy.example.com/openai/v1/chat/completions")

	cfg, err := Load(missingPath(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Providers.Groq.APIKey != "legacy-groq" || cfg.Providers.Gemini.APIKey != "legacy-gemini" {
		t.Errorf("Providers = %+v", cfg.Providers)
	}
	if cfg.Providers.Groq.BaseURL != "https://proxy.example.com/openai/v1" {
		t.Errorf("Groq.BaseURL = %q", cfg.Providers.Groq.BaseURL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown storage", "storage:\n  type: postgres\n"},
		{"redis without url", "cache:\n  type: redis\n"},
		{"unknown cache", "cache:\n  type: memcached\n"},
		{"bad port", "server:\n  port: 70000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("Load() error = nil, want validation error")
			}
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple substitution", "${TEST_VAR}", "test-value"},
		{"substitution in string", "prefix-${TEST_VAR}-suffix", "prefix-test-value-suffix"},
		{"no substitution", "plain-string", "plain-string"},
		{"undefined var", "${UNDEFINED_VAR_FOR_TEST}", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := substituteEnvVars(tt.input); got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}
