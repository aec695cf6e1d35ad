// Package cache implements the cache builder (§4.4): a declarative decorator chain —
// base -> eviction -> [scheduled-flush] -> synchronized -> [logging] -> [serialized] ->
// [blocking] — assembled by Builder from a namespace's <cache> declaration.
package cache

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "cache")

// Cache is the namespace cache surface (§3): it satisfies mapping.Cache without
// importing package mapping, avoiding an import cycle since mapping only needs the
// interface shape.
type Cache interface {
	ID() string
	Put(key, value any)
	Get(key any) (any, bool)
	Remove(key any)
	Clear()
	Size() int
}

// PerpetualCache is the base implementation: an unbounded map guarded by nothing —
// the outer decorators are responsible for eviction and concurrency safety, matching
// the reference PerpetualCache which is deliberately the simplest possible Cache.
type PerpetualCache struct {
	id   string
	data map[any]any
}

// NewPerpetualCache returns an empty base cache identified by id (the owning namespace).
func NewPerpetualCache(id string) *PerpetualCache {
	return &PerpetualCache{id: id, data: make(map[any]any)}
}

func (c *PerpetualCache) ID() string { return c.id }

func (c *PerpetualCache) Put(key, value any) { c.data[key] = value }

func (c *PerpetualCache) Get(key any) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *PerpetualCache) Remove(key any) { delete(c.data, key) }

func (c *PerpetualCache) Clear() { c.data = make(map[any]any) }

func (c *PerpetualCache) Size() int { return len(c.data) }

// SynchronizedCache wraps delegate with a single RWMutex, giving a PerpetualCache (or
// any other non-concurrency-safe decorator beneath it) safe concurrent access. §4.4
// places it directly above the eviction/scheduled-flush layers and below
// logging/serialized/blocking.
type SynchronizedCache struct {
	delegate Cache
	mu       sync.RWMutex
}

func NewSynchronizedCache(delegate Cache) *SynchronizedCache {
	return &SynchronizedCache{delegate: delegate}
}

func (c *SynchronizedCache) ID() string { return c.delegate.ID() }

func (c *SynchronizedCache) Put(key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegate.Put(key, value)
}

func (c *SynchronizedCache) Get(key any) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.delegate.Get(key)
}

func (c *SynchronizedCache) Remove(key any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegate.Remove(key)
}

func (c *SynchronizedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegate.Clear()
}

func (c *SynchronizedCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.delegate.Size()
}

// BlockingCache serializes access per key: a second caller requesting a key already
// being populated waits for the first to Put or Remove it, rather than racing a cache
// stampede against the backing store.
type BlockingCache struct {
	delegate Cache
	locks    sync.Map // key -> *sync.Mutex
}

func NewBlockingCache(delegate Cache) *BlockingCache {
	return &BlockingCache{delegate: delegate}
}

func (c *BlockingCache) ID() string { return c.delegate.ID() }

func (c *BlockingCache) keyLock(key any) *sync.Mutex {
	m, _ := c.locks.LoadOrStore(key, &sync.Mutex{})
	return m.(*sync.Mutex)
}

func (c *BlockingCache) Get(key any) (any, bool) {
	lock := c.keyLock(key)
	lock.Lock()
	v, ok := c.delegate.Get(key)
	if ok {
		lock.Unlock()
	}
	// on a miss the lock is intentionally held until Put/Remove releases it, so a
	// concurrent Get for the same key blocks rather than re-querying the backing store.
	return v, ok
}

func (c *BlockingCache) Put(key, value any) {
	defer c.releaseLock(key)
	c.delegate.Put(key, value)
}

func (c *BlockingCache) Remove(key any) {
	defer c.releaseLock(key)
	c.delegate.Remove(key)
}

func (c *BlockingCache) releaseLock(key any) {
	if m, ok := c.locks.Load(key); ok {
		m.(*sync.Mutex).Unlock()
	}
}

func (c *BlockingCache) Clear() { c.delegate.Clear() }
func (c *BlockingCache) Size() int { return c.delegate.Size() }

// Logger is the capability a LoggingCache reports hit/miss statistics through; the
// ambient logrus entry is used by default but callers may substitute their own.
type Logger interface {
	Debugf(format string, args ...any)
}

// LoggingCache records hit/miss counters and logs them at Debug on every access.
type LoggingCache struct {
	delegate Cache
	logger   Logger
	hits     int64
	misses   int64
}

func NewLoggingCache(delegate Cache, logger Logger) *LoggingCache {
	if logger == nil {
		logger = log
	}
	return &LoggingCache{delegate: delegate, logger: logger}
}

func (c *LoggingCache) ID() string { return c.delegate.ID() }

func (c *LoggingCache) Put(key, value any) { c.delegate.Put(key, value) }

func (c *LoggingCache) Get(key any) (any, bool) {
	v, ok := c.delegate.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.logger.Debugf("cache %s: hits=%d misses=%d ratio=%.2f", c.delegate.ID(), c.hits, c.misses, c.hitRatio())
	return v, ok
}

func (c *LoggingCache) hitRatio() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

func (c *LoggingCache) Remove(key any) { c.delegate.Remove(key) }
func (c *LoggingCache) Clear()         { c.delegate.Clear() }
func (c *LoggingCache) Size() int      { return c.delegate.Size() }

// Serializer round-trips a value through a byte encoding, the same capability the
// reference SerializedCache names.
type Serializer interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// SerializedCache stores an encoded copy of each value so callers can't mutate a
// cached object through a live reference held from a previous Get.
type SerializedCache struct {
	delegate   Cache
	serializer Serializer
}

func NewSerializedCache(delegate Cache, serializer Serializer) *SerializedCache {
	return &SerializedCache{delegate: delegate, serializer: serializer}
}

func (c *SerializedCache) ID() string { return c.delegate.ID() }

func (c *SerializedCache) Put(key, value any) {
	if c.serializer == nil {
		c.delegate.Put(key, value)
		return
	}
	encoded, err := c.serializer.Encode(value)
	if err != nil {
		log.WithError(err).Warn("serialized cache: encode failed, storing raw value")
		c.delegate.Put(key, value)
		return
	}
	c.delegate.Put(key, encoded)
}

func (c *SerializedCache) Get(key any) (any, bool) {
	v, ok := c.delegate.Get(key)
	if !ok || c.serializer == nil {
		return v, ok
	}
	encoded, isBytes := v.([]byte)
	if !isBytes {
		return v, ok
	}
	decoded, err := c.serializer.Decode(encoded)
	if err != nil {
		log.WithError(err).Warn("serialized cache: decode failed")
		return nil, false
	}
	return decoded, true
}

func (c *SerializedCache) Remove(key any) { c.delegate.Remove(key) }
func (c *SerializedCache) Clear()         { c.delegate.Clear() }
func (c *SerializedCache) Size() int      { return c.delegate.Size() }
