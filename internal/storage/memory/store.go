// Package memory implements the storage contracts in process memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tjfontaine/promptgate/internal/domain"
	"github.com/tjfontaine/promptgate/internal/storage"
)

type cacheKey struct {
	prompt string
	model  string
}

// Store is an in-memory Store. Contents are lost on restart.
type Store struct {
	mu           sync.RWMutex
	cache        map[cacheKey]domain.CacheEntry
	interactions []domain.InteractionRecord
	ratings      []domain.RatingRecord
}

var _ storage.Store = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		cache: make(map[cacheKey]domain.CacheEntry),
	}
}

// Lookup returns the latest entry for prompt and model, or nil.
func (s *Store) Lookup(ctx context.Context, prompt, model string) (*domain.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[cacheKey{prompt, model}]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Store replaces the entry for the entry's prompt and model.
func (s *Store) Store(ctx context.Context, entry *domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *entry
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.cache[cacheKey{entry.Prompt, entry.Model}] = e
	return nil
}

// Append adds a copy of rec to the interaction log.
func (s *Store) Append(ctx context.Context, rec *domain.InteractionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interactions = append(s.interactions, *rec)
	return nil
}

// UpdateRating rates every record with promptID and returns how many matched.
func (s *Store) UpdateRating(ctx context.Context, promptID string, score int, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for i := range s.interactions {
		if s.interactions[i].PromptID != promptID {
			continue
		}
		rating, ts := score, at
		s.interactions[i].Rating = &rating
		s.interactions[i].RatingTimestamp = &ts
		updated++
	}
	return updated, nil
}

// List returns copies of all interaction records in insertion order.
func (s *Store) List(ctx context.Context) ([]domain.InteractionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.InteractionRecord, len(s.interactions))
	copy(out, s.interactions)
	return out, nil
}

// Get returns copies of the records with promptID.
func (s *Store) Get(ctx context.Context, promptID string) ([]domain.InteractionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.InteractionRecord
	for _, rec := range s.interactions {
		if rec.PromptID == promptID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AppendRating adds a copy of rec to the rating log.
func (s *Store) AppendRating(ctx context.Context, rec *domain.RatingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ratings = append(s.ratings, *rec)
	return nil
}

// ListRatings returns copies of all ratings in insertion order.
func (s *Store) ListRatings(ctx context.Context) ([]domain.RatingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RatingRecord, len(s.ratings))
	copy(out, s.ratings)
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
