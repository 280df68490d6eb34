// Package cache provides bounded least-recently-used caches.
//
// Caches are safe for concurrent use. Eviction is purely access-ordered; entries
// never expire on a timer.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a size-bounded cache. When built with a clone function it stores a
// private copy of every value and hands out fresh copies on Get, so no caller
// can observe another caller's mutations.
type LRU[K comparable, V any] struct {
	cache *lru.Cache[K, V]
	clone func(V) V
}

// New creates an LRU holding at most size entries. Non-positive sizes fall back to 1.
func New[K comparable, V any](size int) *LRU[K, V] {
	return NewWithClone[K, V](size, nil)
}

// NewWithClone creates an LRU that copies values on the way in and on the way out.
func NewWithClone[K comparable, V any](size int, clone func(V) V) *LRU[K, V] {
	if size <= 0 {
		size = 1
	}
	// lru.New only fails for non-positive sizes
	c, _ := lru.New[K, V](size)
	return &LRU[K, V]{cache: c, clone: clone}
}

// Get returns the cached value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return v, false
	}
	if c.clone != nil {
		return c.clone(v), true
	}
	return v, true
}

// Add stores value under key, evicting the least recently used entry when full.
// Returns true if an eviction occurred.
func (c *LRU[K, V]) Add(key K, value V) bool {
	if c.clone != nil {
		value = c.clone(value)
	}
	return c.cache.Add(key, value)
}

// Remove drops key from the cache.
func (c *LRU[K, V]) Remove(key K) {
	c.cache.Remove(key)
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	return c.cache.Len()
}

// Purge clears the cache.
func (c *LRU[K, V]) Purge() {
	c.cache.Purge()
}
