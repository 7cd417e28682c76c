package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PromptIDLength is the number of hex characters kept from the sha256 digest.
const PromptIDLength = 16

// TimestampFormat is the ISO-8601 layout used for timestamps that feed prompt ids.
const TimestampFormat = "2006-01-02T15:04:05.000000"

// InteractionRecord is one chat event in the interaction log.
// Rating and RatingTimestamp are the only fields changed after creation.
type InteractionRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Prompt    string    `json:"prompt"`

	// Model is the model that actually produced the response.
	Model string `json:"model"`

	// RequestedModel is the model the caller asked for. Empty on older records.
	RequestedModel string `json:"requested_model,omitempty"`

	Response   string `json:"response"`
	LatencyMs  *int64 `json:"latency_ms"`
	TokenCount *int   `json:"token_count"`
	PromptID   string `json:"prompt_id"`

	// Rating is 1-5 once a v1 rating has been applied.
	Rating          *int       `json:"rating"`
	RatingTimestamp *time.Time `json:"rating_timestamp,omitempty"`

	FromCache bool `json:"from_cache"`
}

// FallbackUsed reports whether the record was served by a model other than
// the one requested. Records without a requested model report false.
func (r *InteractionRecord) FallbackUsed() bool {
	return r.RequestedModel != "" && r.RequestedModel != r.Model
}

// RatingRecord is a v2 rating with optional free-text feedback.
// Ratings are stored independently of interactions; a prompt id may have many.
type RatingRecord struct {
	Timestamp time.Time `json:"timestamp"`
	PromptID  string    `json:"prompt_id"`
	Model     string    `json:"model"`
	Rating    int       `json:"rating"`
	Feedback  string    `json:"feedback,omitempty"`
}

// ValidRating reports whether score is within the accepted 1-5 range.
func ValidRating(score int) bool {
	return score >= 1 && score <= 5
}

// NewPromptID derives the identifier for a single chat event.
// The timestamp is part of the input, so identical prompts at different
// instants get different ids.
func NewPromptID(ts time.Time, prompt, model string) string {
	base := FormatTimestamp(ts) + ":" + prompt + ":" + model
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])[:PromptIDLength]
}

// timestampLayouts are accepted when reading stored timestamps.
// Older rows may omit fractional seconds or carry a zone.
var timestampLayouts = []string{
	TimestampFormat,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// FormatTimestamp renders ts in UTC using TimestampFormat.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(TimestampFormat)
}

// ParseTimestamp parses a stored timestamp. Zone-less values are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
