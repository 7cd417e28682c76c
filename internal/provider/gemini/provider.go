// Package gemini implements a Generator for Google Gemini models.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/tjfontaine/promptgate/internal/domain"
)

const (
	// ProviderName identifies this backend in errors and logs.
	ProviderName = "gemini"

	// DefaultTimeout bounds a single upstream call.
	DefaultTimeout = 30 * time.Second
)

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL overrides the Gemini API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client. It overrides WithTimeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithTimeout sets the fixed upstream timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// Provider generates text with a single Gemini model.
type Provider struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration

	client *genai.Client
}

// New creates a provider bound to model.
// An empty model or API key yields a *domain.ConfigurationError.
func New(model, apiKey string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, &domain.ConfigurationError{Component: ProviderName, Reason: "model is required"}
	}
	if apiKey == "" {
		return nil, &domain.ConfigurationError{Component: ProviderName, Reason: "API key is required"}
	}

	p := &Provider{
		model:   model,
		apiKey:  apiKey,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: p.timeout}
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}

	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, &domain.ConfigurationError{Component: ProviderName, Reason: err.Error()}
	}
	p.client = client
	return p, nil
}

// Model returns the model identifier this provider calls.
func (p *Provider) Model() string {
	return p.model
}

// Generate sends prompt as a single user turn.
func (p *Provider) Generate(ctx context.Context, prompt string) (*domain.Generation, error) {
	result, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, p.toProviderError(err)
	}

	text := strings.TrimSpace(collectText(result))
	if text == "" {
		return nil, &domain.ProviderError{Model: p.model, Cause: "response contained no text"}
	}

	gen := &domain.Generation{Text: text}
	if result.UsageMetadata != nil && result.UsageMetadata.TotalTokenCount > 0 {
		n := int(result.UsageMetadata.TotalTokenCount)
		gen.TokenCount = &n
	}
	return gen, nil
}

// collectText concatenates the text parts of the first candidate.
func collectText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 {
		return ""
	}
	content := result.Candidates[0].Content
	if content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func (p *Provider) toProviderError(err error) *domain.ProviderError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return p.fromAPIError(&apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return p.fromAPIError(apiErrPtr, err)
	}
	return domain.NewProviderError(p.model, err)
}

func (p *Provider) fromAPIError(apiErr *genai.APIError, err error) *domain.ProviderError {
	cause := apiErr.Message
	if cause == "" {
		cause = err.Error()
	}
	return &domain.ProviderError{
		Model:      p.model,
		StatusCode: apiErr.Code,
		Cause:      cause,
		Err:        err,
	}
}
