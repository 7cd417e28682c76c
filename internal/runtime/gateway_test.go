package runtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/promptgate/internal/config"
	"github.com/tjfontaine/promptgate/internal/dispatch"
	"github.com/tjfontaine/promptgate/internal/domain"
	"github.com/tjfontaine/promptgate/internal/provider"
	"github.com/tjfontaine/promptgate/internal/storage/memory"
	"github.com/tjfontaine/promptgate/internal/storage/sqlite"
)

type echoGenerator struct{ model string }

func (g echoGenerator) Model() string { return g.model }

func (g echoGenerator) Generate(ctx context.Context, prompt string) (*domain.Generation, error) {
	return &domain.Generation{Text: "echo: " + prompt}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:    config.ServerConfig{Port: 0, RequestTimeout: 5 * time.Second},
		Storage:   config.StorageConfig{Type: "memory"},
		Cache:     config.CacheConfig{Type: "storage"},
		Providers: config.ProvidersConfig{Timeout: time.Second},
		Templates: config.TemplatesConfig{Path: filepath.Join(t.TempDir(), "missing.json")},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGateway_New_RequiresConfig(t *testing.T) {
	_, err := New()
	if err == nil {
		t.Fatal("expected error without config")
	}
	if err.Error() != "config required (use WithConfig)" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGateway_New_UnknownStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Type = "postgres"

	_, err := New(WithConfig(cfg), WithLogger(quietLogger()))
	if err == nil || !strings.Contains(err.Error(), `unknown storage type "postgres"`) {
		t.Errorf("err = %v", err)
	}
}

func TestGateway_ServesChat(t *testing.T) {
	reg := provider.NewRegistry()
	factory := func(model string) (domain.Generator, error) { return echoGenerator{model: model}, nil }
	reg.Register(provider.FamilyGroq, factory)
	reg.Register(provider.FamilyGemini, factory)

	store := memory.New()
	gw, err := New(
		WithConfig(testConfig(t)),
		WithLogger(quietLogger()),
		WithStore(store),
		WithRegistry(reg),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat?model=gemini-2.0-flash", strings.NewReader(`{"prompt":"ping"}`))
	rec := httptest.NewRecorder()
	gw.Server().Router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"response_text":"echo: ping"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	records, _ := store.List(context.Background())
	if len(records) != 1 {
		t.Errorf("interaction log has %d records, want 1", len(records))
	}
}

func TestGateway_OpensSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Type = "sqlite"
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "gateway.db")

	gw, err := New(WithConfig(cfg), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := gw.Store().(*sqlite.Store); !ok {
		t.Errorf("store = %T, want *sqlite.Store", gw.Store())
	}
	if err := gw.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestGateway_StartAndShutdown(t *testing.T) {
	gw, err := New(WithConfig(testConfig(t)), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := gw.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := gw.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	time.Sleep(50 * time.Millisecond)
	if err := gw.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := gw.Wait(ctx); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestNewProviderRegistry_MissingKeys(t *testing.T) {
	reg := NewProviderRegistry(testConfig(t))

	for _, tt := range []struct {
		family provider.Family
		model  string
	}{
		{provider.FamilyGroq, "llama-3.1-8b-instant"},
		{provider.FamilyGemini, "gemini-2.5-flash"},
	} {
		_, err := reg.NewGenerator(tt.family, tt.model)
		var cfgErr *domain.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%s: err = %v, want ConfigurationError", tt.family, err)
		}
	}
}

func TestNewProviderRegistry_WithKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Groq.APIKey = "gsk-test"
	cfg.Providers.Gemini.APIKey = "gm-test"
	reg := NewProviderRegistry(cfg)

	gen, err := reg.NewGenerator(provider.FamilyGroq, "mistral-saba-24b")
	if err != nil {
		t.Fatalf("groq: %v", err)
	}
	if gen.Model() != "mistral-saba-24b" {
		t.Errorf("Model() = %q", gen.Model())
	}
}

func TestNewTable_FallbackOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fallbacks.Groq = "llama-3.3-70b-versatile"

	table := NewTable(cfg)
	spec, ok := table.Classify("mistral-saba-24b")
	if !ok {
		t.Fatal("mistral-saba-24b not classified")
	}
	got := spec.Attempts("mistral-saba-24b")
	if len(got) != 2 || got[1] != "llama-3.3-70b-versatile" {
		t.Errorf("Attempts() = %v", got)
	}

	spec, _ = table.Classify("gemini-2.0-flash")
	if spec.Fallback != provider.DefaultGeminiFallback {
		t.Errorf("gemini fallback = %q", spec.Fallback)
	}
}

func TestGateway_UsesDispatchObserver(t *testing.T) {
	gw, err := New(WithConfig(testConfig(t)), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	_, err = gw.Dispatcher().Chat(context.Background(), dispatch.ChatRequest{Prompt: "x", Model: "gpt-4"})
	var unknown *domain.UnknownProviderError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	gw.Server().Router.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), `promptgate_requests_total{family="unknown",outcome="rejected"} 1`) {
		t.Errorf("rejected request not counted")
	}
}
