// Package cache provides a small loading LRU used for the picture object
// cache: values are materialized on demand by a loader, and eviction
// (capacity-driven or explicit) runs a removal hook so dirty objects can
// be written back before they leave memory.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache maps string keys to lazily loaded values. The load mutex keeps
// two concurrent misses for the same key from racing the loader; hits go
// straight to the LRU.
type Cache[V any] struct {
	lru    *lru.Cache[string, V]
	load   func(key string) (V, error)
	loadMu keyedMutex
}

// New creates a cache holding at most size values. onEvict runs for
// every value leaving the cache, whether pushed out by capacity or
// removed explicitly.
func New[V any](size int, load func(key string) (V, error), onEvict func(key string, value V)) (*Cache[V], error) {
	if load == nil {
		return nil, fmt.Errorf("cache loader must not be nil")
	}
	inner, err := lru.NewWithEvict[string, V](size, onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &Cache[V]{lru: inner, load: load}, nil
}

// Get returns the cached value for key, loading and inserting it on a
// miss
func (c *Cache[V]) Get(key string) (V, error) {
	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}

	unlock := c.loadMu.lock(key)
	defer unlock()

	// another goroutine may have loaded it while we waited
	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}

	v, err := c.load(key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.lru.Add(key, v)
	return v, nil
}

// Put inserts a value directly, bypassing the loader. Used when the
// caller has just constructed the value itself (e.g. at ingestion).
func (c *Cache[V]) Put(key string, value V) {
	c.lru.Add(key, value)
}

// Peek returns the cached value without loading or touching recency
func (c *Cache[V]) Peek(key string) (V, bool) {
	return c.lru.Peek(key)
}

// Invalidate removes a key, running the eviction hook if it was resident
func (c *Cache[V]) Invalidate(key string) {
	c.lru.Remove(key)
}

// Purge evicts everything, running the eviction hook for each resident
// value
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// Len returns the number of resident values
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Keys returns the resident keys, oldest first
func (c *Cache[V]) Keys() []string {
	return c.lru.Keys()
}
