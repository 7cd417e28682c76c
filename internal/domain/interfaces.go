package domain

import (
	"context"
)

// Generator is the capability every model backend implements.
// A Generator is bound to exactly one model identifier at construction.
type Generator interface {
	// Model returns the model identifier this generator calls.
	Model() string

	// Generate sends prompt upstream. Failures are returned as *ProviderError.
	Generate(ctx context.Context, prompt string) (*Generation, error)
}

// TokenEstimator approximates token counts when a provider reports none.
type TokenEstimator interface {
	Estimate(text, model string) int
}
