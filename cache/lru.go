package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LruCache is the default eviction decorator (§4.4). It backs Put/Get/Remove with
// hashicorp/golang-lru instead of the hand-rolled doubly-linked-list the reference
// implementation uses internally — the eviction policy and observable behavior (oldest
// unused entry evicted once capacity is exceeded) are identical; only the bookkeeping
// data structure changes.
type LruCache struct {
	delegate Cache
	lru      *lru.Cache[any, any]
}

// NewLruCache wraps delegate with an LRU eviction policy capped at capacity entries.
// Evicted keys are also removed from delegate so the two stay in lockstep.
func NewLruCache(delegate Cache, capacity int) *LruCache {
	if capacity <= 0 {
		capacity = 1024
	}
	c := &LruCache{delegate: delegate}
	l, _ := lru.NewWithEvict[any, any](capacity, func(key, _ any) {
		delegate.Remove(key)
	})
	c.lru = l
	return c
}

func (c *LruCache) ID() string { return c.delegate.ID() }

func (c *LruCache) Put(key, value any) {
	c.delegate.Put(key, value)
	c.lru.Add(key, value)
}

func (c *LruCache) Get(key any) (any, bool) {
	if _, ok := c.lru.Get(key); !ok {
		return nil, false
	}
	return c.delegate.Get(key)
}

func (c *LruCache) Remove(key any) {
	c.lru.Remove(key)
	c.delegate.Remove(key)
}

func (c *LruCache) Clear() {
	c.lru.Purge()
	c.delegate.Clear()
}

func (c *LruCache) Size() int { return c.lru.Len() }
