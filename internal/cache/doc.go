// Package cache provides the bounded, concurrency-safe store of archaeological
// contexts keyed by query hash.
//
// Eviction is strict least-recently-used: both Put and a successful Get mark a
// key as most recently used, and an overflowing Put evicts the least recently
// used entry (never the key just written). The backing structure is
// github.com/hashicorp/golang-lru/v2, which pairs a hash map with an intrusive
// recency list so every operation is O(1) and atomic under a single lock.
//
// A cache created with a max size of zero is disabled: every Get misses and
// nothing is retained.
//
//	c := cache.NewLRUCache(1000)
//	c.Put(key, ctx)
//	if hit, ok := c.Get(key); ok {
//	    fmt.Println(hit.Answer)
//	}
//
// Values are deep-copied on Put and Get so callers cannot mutate cached
// entries through returned pointers.
package cache
