package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/whycontext-mcp/pkg/types"
)

// LRUCache is a bounded key -> context store with strict recency eviction
type LRUCache struct {
	maxSize int
	cache   *lru.Cache[string, *types.ArchaeologicalContext] // nil when disabled
}

// NewLRUCache creates a cache holding at most maxSize entries.
// A maxSize of zero or less yields a disabled cache.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		return &LRUCache{}
	}
	inner, err := lru.New[string, *types.ArchaeologicalContext](maxSize)
	if err != nil {
		// lru.New only fails for non-positive sizes
		return &LRUCache{}
	}
	return &LRUCache{maxSize: maxSize, cache: inner}
}

// Put inserts or updates key and marks it most recently used.
// Returns true if an older entry was evicted to make room.
func (c *LRUCache) Put(key string, value *types.ArchaeologicalContext) bool {
	if c.cache == nil || value == nil {
		return false
	}
	return c.cache.Add(key, value.Clone())
}

// Get returns a copy of the value for key and promotes it to most recently used
func (c *LRUCache) Get(key string) (*types.ArchaeologicalContext, bool) {
	if c.cache == nil {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// Contains reports whether key is present without touching its recency
func (c *LRUCache) Contains(key string) bool {
	if c.cache == nil {
		return false
	}
	return c.cache.Contains(key)
}

// Keys returns the cached keys from least to most recently used
func (c *LRUCache) Keys() []string {
	if c.cache == nil {
		return nil
	}
	return c.cache.Keys()
}

// Clear empties the cache atomically
func (c *LRUCache) Clear() {
	if c.cache == nil {
		return
	}
	c.cache.Purge()
}

// Len returns the current number of entries
func (c *LRUCache) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

// MaxSize returns the configured capacity
func (c *LRUCache) MaxSize() int {
	return c.maxSize
}

// Enabled reports whether the cache retains entries at all
func (c *LRUCache) Enabled() bool {
	return c.cache != nil
}
