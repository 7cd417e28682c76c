package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tjfontaine/promptgate/internal/domain"
)

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &gotPath
}

func TestProvider_Generate(t *testing.T) {
	server, gotPath := newTestServer(t, http.StatusOK, `{
		"candidates": [{"content": {"role": "model", "parts": [{"text": "Hello "}, {"text": "from Gemini.\n"}]}}],
		"usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 5, "totalTokenCount": 9}
	}`)

	p, err := New("gemini-2.5-flash", "test-key", WithBaseURL(server.URL+"/"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	gen, err := p.Generate(context.Background(), "Say hello")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if gen.Text != "Hello from Gemini." {
		t.Errorf("Text = %q", gen.Text)
	}
	if gen.TokenCount == nil || *gen.TokenCount != 9 {
		t.Errorf("TokenCount = %v, want 9", gen.TokenCount)
	}
	if !strings.Contains(*gotPath, "models/gemini-2.5-flash:generateContent") {
		t.Errorf("path = %q", *gotPath)
	}
}

func TestProvider_Generate_NoUsage(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, `{
		"candidates": [{"content": {"role": "model", "parts": [{"text": "ok"}]}}]
	}`)

	p, err := New("gemini-2.0-flash", "test-key", WithBaseURL(server.URL+"/"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	gen, err := p.Generate(context.Background(), "ping")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if gen.TokenCount != nil {
		t.Errorf("TokenCount = %d, want nil", *gen.TokenCount)
	}
}

func TestProvider_Generate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantCause  string
	}{
		{
			name:       "api error",
			status:     http.StatusBadRequest,
			body:       `{"error": {"code": 400, "message": "API key not valid. Please pass a valid API key.", "status": "INVALID_ARGUMENT"}}`,
			wantStatus: http.StatusBadRequest,
			wantCause:  "API key not valid. Please pass a valid API key.",
		},
		{
			name:      "empty candidates",
			status:    http.StatusOK,
			body:      `{"candidates": []}`,
			wantCause: "response contained no text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, tt.status, tt.body)

			p, err := New("gemini-2.5-pro", "test-key", WithBaseURL(server.URL+"/"))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			_, err = p.Generate(context.Background(), "hi")

			var perr *domain.ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("error = %T %v, want *domain.ProviderError", err, err)
			}
			if perr.Model != "gemini-2.5-pro" {
				t.Errorf("Model = %q", perr.Model)
			}
			if perr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", perr.StatusCode, tt.wantStatus)
			}
			if perr.Cause != tt.wantCause {
				t.Errorf("Cause = %q, want %q", perr.Cause, tt.wantCause)
			}
		})
	}
}

func TestNew_Configuration(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		apiKey string
	}{
		{"missing model", "", "key"},
		{"missing key", "gemini-2.5-flash", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.model, tt.apiKey)
			var cerr *domain.ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("error = %v, want *domain.ConfigurationError", err)
			}
		})
	}
}
