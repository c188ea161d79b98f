package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"expeval/ports"
)

// MemoryCache is an in-process result cache. Concurrent computations for
// the same key collapse into one flight; late callers share its result.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]ports.CachedResult
	group   singleflight.Group
}

// NewMemoryCache creates an empty in-process result cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]ports.CachedResult)}
}

// Get returns the cached result for the key, or false when none exists.
func (c *MemoryCache) Get(_ context.Context, key string) (*ports.CachedResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return &entry, true
}

// Put stores a freshly computed result under the key.
func (c *MemoryCache) Put(_ context.Context, key string, result ports.CachedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
}

// Compute runs fn for the key with at most one flight in progress per key.
func (c *MemoryCache) Compute(ctx context.Context, key string, fn func(context.Context) (*ports.CachedResult, error)) (*ports.CachedResult, error) {
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ports.CachedResult), nil
}
