package clientdata

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Stats are cumulative cache counters since construction.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	WriteFailures int64 `json:"write_failures"`
}

// Cache is the durable fact cache. Reads fail open and writes are best-effort:
// no storage problem is ever returned to the caller.
// A nil *Cache is valid and behaves as an always-empty cache.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	writeFailures atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a cache over store. A non-positive ttl falls back to DefaultTTL.
func NewCache(store Store, ttl time.Duration, log zerolog.Logger, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		log:   log.With().Str("component", "fact_cache").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the default max-age applied by Get.
func (c *Cache) TTL() time.Duration {
	if c == nil {
		return DefaultTTL
	}
	return c.ttl
}

// Get decodes the value stored under key into out if it is younger than the default TTL.
func (c *Cache) Get(ctx context.Context, key string, out interface{}) bool {
	return c.GetWithMaxAge(ctx, key, 0, out)
}

// GetWithMaxAge decodes the value stored under key into out iff now - storedAt <= maxAge.
// A non-positive maxAge means the default TTL. Any load or decode failure is a miss.
func (c *Cache) GetWithMaxAge(ctx context.Context, key string, maxAge time.Duration, out interface{}) bool {
	if c == nil || c.store == nil {
		return false
	}
	if maxAge <= 0 {
		maxAge = c.ttl
	}

	entry, ok, err := c.store.Load(ctx, key)
	if err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
		c.misses.Add(1)
		return false
	}
	if !ok {
		c.misses.Add(1)
		return false
	}

	if age := entry.Age(c.now()); age > maxAge {
		c.log.Debug().Str("key", key).Dur("age", age).Msg("Cache entry expired")
		c.misses.Add(1)
		return false
	}

	if err := json.Unmarshal(entry.Value, out); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("Cache entry undecodable, treating as miss")
		c.misses.Add(1)
		return false
	}

	c.hits.Add(1)
	c.log.Debug().Str("key", key).Msg("Cache hit")
	return true
}

// SetBestEffort stores value under key. Failures are logged and dropped; the
// caller keeps its in-memory result and only later lookups lose the cache.
func (c *Cache) SetBestEffort(ctx context.Context, key string, value interface{}) {
	if c == nil || c.store == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.writeFailures.Add(1)
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to encode cache value")
		return
	}

	entry := Entry{Key: key, Value: data, StoredAt: c.now()}
	if err := c.store.Save(ctx, entry); err != nil {
		c.writeFailures.Add(1)
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to persist cache value")
	}
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		WriteFailures: c.writeFailures.Load(),
	}
}

// Store returns the underlying storage backend.
func (c *Cache) Store() Store {
	if c == nil {
		return nil
	}
	return c.store
}

// Fetch returns the cached value for key when fresh, otherwise calls fetch,
// stores a successful result and returns it. Fetch errors are returned as-is
// and never cached.
func Fetch[T any](ctx context.Context, c *Cache, key string, maxAge time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	if c.GetWithMaxAge(ctx, key, maxAge, &cached) {
		return cached, nil
	}

	fresh, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.SetBestEffort(ctx, key, fresh)
	return fresh, nil
}
