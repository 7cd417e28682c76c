// Package storage defines the persistence contracts for the response cache,
// the interaction log, and the rating log.
package storage

import (
	"context"
	"time"

	"github.com/tjfontaine/promptgate/internal/domain"
)

// ResponseCache maps an exact (prompt, model) pair to a stored response.
// Entries never expire; a later Store for the same key replaces the earlier one.
type ResponseCache interface {
	// Lookup returns the entry for (prompt, model), or nil on a miss.
	Lookup(ctx context.Context, prompt, model string) (*domain.CacheEntry, error)

	// Store upserts entry.
	Store(ctx context.Context, entry *domain.CacheEntry) error
}

// InteractionLog is the append-only record of chat events.
// Ratings are the only in-place mutation.
type InteractionLog interface {
	// Append adds a record. It is visible to readers once Append returns.
	Append(ctx context.Context, rec *domain.InteractionRecord) error

	// UpdateRating sets the rating on every record with promptID and
	// returns how many were updated. Zero matches is not an error.
	UpdateRating(ctx context.Context, promptID string, score int, at time.Time) (int, error)

	// List returns every record in append order.
	List(ctx context.Context) ([]domain.InteractionRecord, error)

	// Get returns the records carrying promptID in append order.
	Get(ctx context.Context, promptID string) ([]domain.InteractionRecord, error)
}

// RatingLog is the append-only record of v2 ratings.
type RatingLog interface {
	AppendRating(ctx context.Context, rec *domain.RatingRecord) error
	ListRatings(ctx context.Context) ([]domain.RatingRecord, error)
}

// Store is a backend that provides all three logs.
type Store interface {
	ResponseCache
	InteractionLog
	RatingLog
	Close() error
}
