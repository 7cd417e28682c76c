// Package provider classifies model identifiers into provider families and
// builds model-bound generators for them.
//
// # Adding a New Family
//
// Append a FamilySpec to the table returned by DefaultTable and register a
// Factory for it on the Registry used by the dispatcher:
//
//	reg.Register(provider.FamilyMistral, func(model string) (domain.Generator, error) {
//	    return mistral.New(model, cfg.Providers.Mistral.APIKey)
//	})
package provider

import (
	"strings"

	"github.com/tjfontaine/promptgate/internal/domain"
)

// Family is a provider family. The set is closed.
type Family string

const (
	FamilyGroq   Family = "groq"
	FamilyGemini Family = "gemini"
)

const (
	// DefaultGroqFallback is the Groq family's fallback model.
	DefaultGroqFallback = "llama-3.1-8b-instant"
	// DefaultGeminiFallback is the Gemini family's fallback model.
	DefaultGeminiFallback = "gemini-2.5-flash"
)

// CatalogEntry is a well-known model shown in the catalog.
type CatalogEntry struct {
	ID    string
	Label string
}

// FamilySpec describes one row of the classification table.
type FamilySpec struct {
	Family   Family
	Label    string
	Prefixes []string
	Fallback string
	Models   []CatalogEntry
}

// Matches reports whether model starts with any of the family prefixes.
func (s *FamilySpec) Matches(model string) bool {
	for _, p := range s.Prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// Table is an ordered classification table. The first matching row wins.
type Table struct {
	specs []FamilySpec
}

// NewTable creates a table from specs, in priority order.
func NewTable(specs ...FamilySpec) *Table {
	return &Table{specs: specs}
}

// DefaultTable returns the built-in Groq and Gemini families.
// Empty fallback entries keep the built-in defaults.
func DefaultTable(fallbacks map[Family]string) *Table {
	groq := FamilySpec{
		Family: FamilyGroq,
		Label:  "Groq",
		Prefixes: []string{
			"llama-3.1-8b",
			"llama-3.3-70b",
			"deepseek",
			"meta-llama/llama-4-maverick",
			"meta-llama/llama-4-scout",
			"meta-llama/llama-prompt-guard-2-22m",
			"meta-llama/llama-prompt-guard-2-86m",
			"meta-llama/llama-guard",
			"mistral",
			"moonshotai/",
		},
		Fallback: DefaultGroqFallback,
		Models: []CatalogEntry{
			{"llama-3.1-8b-instant", "Llama 3.1 8B (Groq)"},
			{"llama-3.3-70b-versatile", "Llama 3.3 70B (Groq)"},
			{"meta-llama/llama-guard-4-12b", "Llama Guard 4 12B (Groq)"},
			{"deepseek-r1-distill-llama-70b", "DeepSeek Llama 70B (Groq)"},
			{"meta-llama/llama-4-maverick-17b-128e-instruct", "Llama 4 Maverick 17B (Groq)"},
			{"meta-llama/llama-4-scout-17b-16e-instruct", "Llama 4 Scout 17B (Groq)"},
			{"meta-llama/llama-prompt-guard-2-22m", "Llama Prompt Guard 22M (Groq)"},
			{"meta-llama/llama-prompt-guard-2-86m", "Llama Prompt Guard 86M (Groq)"},
			{"mistral-saba-24b", "Mistral Saba 24B (Groq)"},
			{"moonshotai/kimi-k2-instruct", "Moonshot Kimi K2 (Groq)"},
		},
	}
	gemini := FamilySpec{
		Family:   FamilyGemini,
		Label:    "Google",
		Prefixes: []string{"gemini"},
		Fallback: DefaultGeminiFallback,
		Models: []CatalogEntry{
			{"gemini-2.5-pro", "Gemini 2.5 Pro (Google)"},
			{"gemini-2.5-flash", "Gemini 2.5 Flash (Google)"},
			{"gemini-2.5-flash-lite-preview-06-17", "Gemini 2.5 Flash-Lite Preview (Google)"},
			{"gemini-2.0-flash", "Gemini 2.0 Flash (Google)"},
			{"gemini-2.0-flash-lite", "Gemini 2.0 Flash-Lite (Google)"},
		},
	}

	if fb := fallbacks[FamilyGroq]; fb != "" {
		groq.Fallback = fb
	}
	if fb := fallbacks[FamilyGemini]; fb != "" {
		gemini.Fallback = fb
	}

	return NewTable(groq, gemini)
}

// Classify returns the family spec for model, or false if no row matches.
func (t *Table) Classify(model string) (*FamilySpec, bool) {
	if model == "" {
		return nil, false
	}
	for i := range t.specs {
		if t.specs[i].Matches(model) {
			return &t.specs[i], true
		}
	}
	return nil, false
}

// Attempts returns the ordered, deduplicated list of models to try for model.
func (s *FamilySpec) Attempts(model string) []string {
	if s.Fallback == "" || s.Fallback == model {
		return []string{model}
	}
	return []string{model, s.Fallback}
}

// Catalog lists every well-known model with its family.
func (t *Table) Catalog() []domain.ModelInfo {
	var out []domain.ModelInfo
	for _, s := range t.specs {
		for _, m := range s.Models {
			out = append(out, domain.ModelInfo{
				ID:     m.ID,
				Family: string(s.Family),
				Label:  m.Label,
			})
		}
	}
	return out
}

// Families returns the families in table order.
func (t *Table) Families() []Family {
	out := make([]Family, len(t.specs))
	for i, s := range t.specs {
		out[i] = s.Family
	}
	return out
}
