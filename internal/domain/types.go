package domain

import "time"

// CacheEntry is a cached response keyed by the exact (Prompt, Model) pair.
type CacheEntry struct {
	Prompt    string    `json:"prompt"`
	Model     string    `json:"model"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// Generation is the result of a single provider call.
type Generation struct {
	Text string

	// TokenCount is set only when the upstream API reported usage.
	TokenCount *int
}

// ModelInfo describes a model the gateway knows how to route.
type ModelInfo struct {
	ID     string `json:"id"`
	Family string `json:"family"`
	Label  string `json:"label"`
}
