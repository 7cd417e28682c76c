package runtime

import (
	"net/http"

	"github.com/tjfontaine/promptgate/internal/config"
	"github.com/tjfontaine/promptgate/internal/domain"
	"github.com/tjfontaine/promptgate/internal/provider"
	"github.com/tjfontaine/promptgate/internal/provider/gemini"
	"github.com/tjfontaine/promptgate/internal/provider/groq"
	"github.com/tjfontaine/promptgate/internal/safehttp"
)

// NewProviderRegistry registers the Groq and Gemini factories with the
// credentials in cfg. A missing key surfaces per request as a
// configuration error, so a gateway with one family configured still serves it.
func NewProviderRegistry(cfg *config.Config) *provider.Registry {
	reg := provider.NewRegistry()

	timeout := cfg.Providers.Timeout
	var httpClient *http.Client
	if cfg.Providers.PublicOnly {
		httpClient = safehttp.NewClient(timeout)
	}

	groqCfg := cfg.Providers.Groq
	reg.Register(provider.FamilyGroq, func(model string) (domain.Generator, error) {
		opts := []groq.Option{groq.WithBaseURL(groqCfg.BaseURL), groq.WithTimeout(timeout)}
		if httpClient != nil {
			opts = append(opts, groq.WithHTTPClient(httpClient))
		}
		return groq.New(model, groqCfg.APIKey, opts...)
	})

	geminiCfg := cfg.Providers.Gemini
	reg.Register(provider.FamilyGemini, func(model string) (domain.Generator, error) {
		opts := []gemini.Option{gemini.WithBaseURL(geminiCfg.BaseURL), gemini.WithTimeout(timeout)}
		if httpClient != nil {
			opts = append(opts, gemini.WithHTTPClient(httpClient))
		}
		return gemini.New(model, geminiCfg.APIKey, opts...)
	})

	return reg
}

// NewTable applies the configured fallback overrides to the default table.
func NewTable(cfg *config.Config) *provider.Table {
	return provider.DefaultTable(map[provider.Family]string{
		provider.FamilyGroq:   cfg.Fallbacks.Groq,
		provider.FamilyGemini: cfg.Fallbacks.Gemini,
	})
}
