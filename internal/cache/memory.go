package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Memory is an in-process LRU with per-entry TTL.
type Memory struct {
	items *ttlcache.Cache[string, []byte]
}

// NewMemory creates a cache holding at most capacity keys. Reads do not
// extend an entry's lifetime.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Memory{
		items: ttlcache.New[string, []byte](
			ttlcache.WithCapacity[string, []byte](uint64(capacity)),
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		),
	}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := c.items.Get(key)
	if item == nil {
		return nil, false, nil
	}
	return append([]byte(nil), item.Value()...), true, nil
}

// Set stores value for ttl. A non-positive ttl never expires.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	c.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Len returns the number of keys, including expired ones not yet evicted.
func (c *Memory) Len() int {
	return c.items.Len()
}

// Stats returns hit and miss counts.
func (c *Memory) Stats() (hits, misses int64) {
	m := c.items.Metrics()
	return int64(m.Hits), int64(m.Misses)
}
