// Package cache provides the TTL key-value store used for the pool list and
// the disabled-pool list.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key-value cache. A missing or expired key reports ok=false
// with a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
