package gateway_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/tjfontaine/promptgate/pkg/gateway"
)

func TestEmbed(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROMPTGATE_STORAGE__TYPE", "memory")
	t.Setenv("PROMPTGATE_TEMPLATES__PATH", filepath.Join(dir, "none.json"))

	cfg, err := gateway.LoadConfig(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	gw, err := gateway.New(
		gateway.WithConfig(cfg),
		gateway.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rec := httptest.NewRecorder()
	gw.Server().Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}
