package state

import (
	"sync"
	"time"

	"vaultPricer/internal/model"
)

// fallbackCache holds fetched states for exactly one block. A different
// block discards everything; the same block merges.
type fallbackCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	nowFn     func() time.Time
	block     uint64
	createdAt time.Time
	pools     map[string]*model.PoolState
}

// get returns the cached state and whether the cache was reset for block.
func (c *fallbackCache) get(address string, block uint64) (*model.PoolState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	reset := c.resetLocked(block)
	return c.pools[address], reset
}

// merge adds fetched states if the cache still serves block.
func (c *fallbackCache) merge(block uint64, states map[string]*model.PoolState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(block)
	for addr, s := range states {
		c.pools[addr] = s
	}
}

func (c *fallbackCache) resetLocked(block uint64) bool {
	now := c.nowFn()
	expired := c.ttl > 0 && now.Sub(c.createdAt) >= c.ttl
	if c.pools != nil && c.block == block && !expired {
		return false
	}
	c.block = block
	c.createdAt = now
	c.pools = make(map[string]*model.PoolState)
	return true
}

func (c *fallbackCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pools)
}
