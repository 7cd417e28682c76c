// Package groq implements a Generator for models served by Groq's
// OpenAI-compatible chat completions API.
package groq

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openaiapi "github.com/tjfontaine/promptgate/internal/api/openai"
	"github.com/tjfontaine/promptgate/internal/domain"
)

const (
	// ProviderName identifies this backend in errors and logs.
	ProviderName = "groq"

	// MaxTokens caps the completion length of every request.
	MaxTokens = 512

	// Temperature is the sampling temperature of every request.
	Temperature float32 = 0.7

	// DefaultTimeout bounds a single upstream call.
	DefaultTimeout = 30 * time.Second
)

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL sets a custom base URL for the API.
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

// Provider generates text with a single Groq-hosted model.
type Provider struct {
	model      string
	client     *openaiapi.Client
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
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
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}

	clientOpts := []openaiapi.ClientOption{openaiapi.WithTimeout(p.timeout)}
	if p.baseURL != "" {
		clientOpts = append(clientOpts, openaiapi.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, openaiapi.WithHTTPClient(p.httpClient))
	}

	p.client = openaiapi.NewClient(apiKey, clientOpts...)
	return p, nil
}

// Model returns the model identifier this provider calls.
func (p *Provider) Model() string {
	return p.model
}

// Generate sends prompt as a single user message.
func (p *Provider) Generate(ctx context.Context, prompt string) (*domain.Generation, error) {
	temperature := Temperature
	req := &openaiapi.ChatCompletionRequest{
		Model: p.model,
		Messages: []openaiapi.ChatCompletionMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   MaxTokens,
		Temperature: &temperature,
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, p.toProviderError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &domain.ProviderError{Model: p.model, Cause: "response contained no choices"}
	}

	gen := &domain.Generation{
		Text: strings.TrimSpace(resp.Choices[0].Message.Content),
	}
	if resp.Usage != nil && resp.Usage.TotalTokens > 0 {
		n := resp.Usage.TotalTokens
		gen.TokenCount = &n
	}
	return gen, nil
}

func (p *Provider) toProviderError(err error) *domain.ProviderError {
	var apiErr *openaiapi.APIError
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{
			Model:      p.model,
			StatusCode: apiErr.StatusCode,
			Cause:      apiErr.Message,
			Err:        err,
		}
	}
	return domain.NewProviderError(p.model, err)
}
