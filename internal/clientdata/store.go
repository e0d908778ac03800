// Package clientdata provides the durable fact cache for external API client responses.
// Values are stored as JSON with the time they were written; freshness is decided on read.
package clientdata

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is one cached value. Identity is Key.
type Entry struct {
	Key      string
	Value    json.RawMessage
	StoredAt time.Time
}

// Age reports how old the entry is at now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Store is the storage boundary behind the cache.
// Load returns ok=false with a nil error when the key is absent.
// Save must replace the whole entry atomically.
type Store interface {
	Load(ctx context.Context, key string) (Entry, bool, error)
	Save(ctx context.Context, entry Entry) error
}

// Pruner is implemented by stores that can physically drop old entries.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
