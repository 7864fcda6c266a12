// Package cache provides the namespaced TTL key/value store backing the
// reference pipeline. Values are opaque serialized bytes: the cache never
// owns domain objects, only copies with an expiry.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = eris.New("cache: key not found")

// Store is the persistence interface for the metadata cache. Reads and
// writes are per-key atomic; there are no cross-key transactions.
type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, namespace, key string) error
	GetMany(ctx context.Context, namespace string, keys []string) (map[string][]byte, error)
	SetMany(ctx context.Context, namespace string, values map[string][]byte, ttl time.Duration) error
	DeleteExpired(ctx context.Context) (int, error)
	Stats() CounterSnapshot
	Close() error
}

// CounterSnapshot reports accumulated hit/miss counts.
type CounterSnapshot struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// counters tracks hits and misses; embedded by every backend.
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) hit()  { c.hits.Add(1) }
func (c *counters) miss() { c.misses.Add(1) }

// Stats returns the current hit/miss counts.
func (c *counters) Stats() CounterSnapshot {
	return CounterSnapshot{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
