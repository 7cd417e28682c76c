package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/promptgate/internal/domain"
)

func TestKey(t *testing.T) {
	a := Key("hello", "gemini-2.5-flash")
	if !strings.HasPrefix(a, prefix) {
		t.Errorf("Key() = %q, want prefix %q", a, prefix)
	}
	if a != Key("hello", "gemini-2.5-flash") {
		t.Error("Key() should be deterministic")
	}
	if a == Key("hello", "gemini-2.5-pro") {
		t.Error("different models must not share a key")
	}
	if Key("ab", "c") == Key("a", "bc") {
		t.Error("prompt/model boundary must be unambiguous")
	}
}

func TestNewCache_BadURL(t *testing.T) {
	if _, err := NewCache("not a url"); err == nil {
		t.Error("NewCache() with bad URL should fail")
	}
}

// Requires a running server, e.g. REDIS_URL=redis://localhost:6379/15.
func TestCache_RoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping test: REDIS_URL not set")
	}

	c, err := NewCache(url)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	prompt := "redis round trip " + time.Now().Format(time.RFC3339Nano)

	entry, err := c.Lookup(ctx, prompt, "llama-3.1-8b-instant")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if entry != nil {
		t.Fatalf("Lookup() = %+v, want miss", entry)
	}

	if err := c.Store(ctx, &domain.CacheEntry{Prompt: prompt, Model: "llama-3.1-8b-instant", Response: "one"}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := c.Store(ctx, &domain.CacheEntry{Prompt: prompt, Model: "llama-3.1-8b-instant", Response: "two"}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	entry, err = c.Lookup(ctx, prompt, "llama-3.1-8b-instant")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if entry == nil || entry.Response != "two" {
		t.Errorf("Lookup() = %+v, want last write", entry)
	}
}
