package dispatch

import "time"

// Request outcomes reported to Observer.RequestCompleted.
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Cache lookup results reported to Observer.CacheLookup.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Side effects whose failure is absorbed rather than returned.
const (
	SideEffectCacheLookup = "cache_lookup"
	SideEffectCacheStore  = "cache_store"
	SideEffectLogAppend   = "log_append"
)

// Observer receives dispatch events for metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	RequestCompleted(family, outcome string)
	AttemptCompleted(family, model string, latency time.Duration, err error)
	FallbackUsed(family string)
	CacheLookup(result string)
	SideEffectFailed(kind string)
}

type nopObserver struct{}

func (nopObserver) RequestCompleted(string, string) {}
func (nopObserver) AttemptCompleted(string, string, time.Duration, error) {}
func (nopObserver) FallbackUsed(string) {}
func (nopObserver) CacheLookup(string) {}
func (nopObserver) SideEffectFailed(string) {}
