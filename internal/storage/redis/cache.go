// Package redis implements storage.ResponseCache on Redis.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	r "gopkg.in/redis.v5"

	"github.com/tjfontaine/promptgate/internal/domain"
	"github.com/tjfontaine/promptgate/internal/storage"
)

const prefix = "promptgate:cache:"

// Cache stores each entry as one JSON value, so a read sees either the
// whole entry or nothing. Entries have no expiry.
type Cache struct {
	client *r.Client
}

var _ storage.ResponseCache = (*Cache)(nil)

// NewCache connects to the Redis server at url and verifies it responds.
func NewCache(url string) (*Cache, error) {
	opts, err := r.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := r.NewClient(opts)
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Key returns the Redis key for (prompt, model).
func Key(prompt, model string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return prefix + hex.EncodeToString(sum[:])
}

// Lookup returns the entry for (prompt, model), or nil on a miss.
// A stored value for a different pair is treated as a miss.
func (c *Cache) Lookup(ctx context.Context, prompt, model string) (*domain.CacheEntry, error) {
	data, err := c.client.Get(Key(prompt, model)).Bytes()
	if errors.Is(err, r.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	if entry.Prompt != prompt || entry.Model != model {
		return nil, nil
	}
	return &entry, nil
}

// Store writes entry in a single SET with no expiry.
func (c *Cache) Store(ctx context.Context, entry *domain.CacheEntry) error {
	e := *entry
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(Key(e.Prompt, e.Model), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Close closes the Redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
