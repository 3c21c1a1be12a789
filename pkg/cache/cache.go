// Package cache provides the bounded, generic compiled-artifact cache
// shared by the rule engine and the plugin host. It generalizes the
// teacher's hand-rolled LRU+mutex dedup cache
// (pkg/deduplication.DeduplicationManager) into a typed wrapper around
// hashicorp/golang-lru/v2, trading the teacher's manual doubly-linked
// list and TTL sweep goroutine for the library's eviction policy while
// keeping the same Stats-reporting shape (TotalChecks/Hits/Misses/
// Evictions) the rest of the codebase expects from a cache component.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Stats mirrors the teacher's deduplication Stats struct, renamed to the
// counters a compiled-artifact cache actually reports.
type Stats struct {
	Lookups  int64
	Hits     int64
	Misses   int64
	Inserts  int64
	Evicted  int64
}

// Cache is a fixed-capacity, concurrency-safe LRU cache keyed by string.
// V is typically a compiled rule or a loaded parser plugin, both
// expensive enough to compile once and reuse for the process lifetime.
type Cache[V any] struct {
	inner *lru.Cache[string, V]

	lookups int64
	hits    int64
	misses  int64
	inserts int64
	evicted int64
}

// New creates a Cache holding at most size entries. size must be positive.
func New[V any](size int) (*Cache[V], error) {
	c := &Cache[V]{}
	inner, err := lru.NewWithEvict[string, V](size, func(string, V) {
		atomic.AddInt64(&c.evicted, 1)
	})
	if err != nil {
		return nil, err
	}
	c.inner = inner
	return c, nil
}

// Get returns the cached value for key, if present.
func (c *Cache[V]) Get(key string) (V, bool) {
	atomic.AddInt64(&c.lookups, 1)
	v, ok := c.inner.Get(key)
	if ok {
		atomic.AddInt64(&c.hits, 1)
	} else {
		atomic.AddInt64(&c.misses, 1)
	}
	return v, ok
}

// Put inserts or replaces the value cached at key.
func (c *Cache[V]) Put(key string, value V) {
	atomic.AddInt64(&c.inserts, 1)
	c.inner.Add(key, value)
}

// Remove evicts key, if present.
func (c *Cache[V]) Remove(key string) {
	c.inner.Remove(key)
}

// Purge clears every cached entry, used when a rule or plugin directory
// hot-reloads and every compiled artifact must be recompiled lazily.
func (c *Cache[V]) Purge() {
	c.inner.Purge()
}

// Len reports the number of entries currently cached.
func (c *Cache[V]) Len() int {
	return c.inner.Len()
}

// Stats returns a point-in-time snapshot of cache counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Lookups: atomic.LoadInt64(&c.lookups),
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Inserts: atomic.LoadInt64(&c.inserts),
		Evicted: atomic.LoadInt64(&c.evicted),
	}
}
