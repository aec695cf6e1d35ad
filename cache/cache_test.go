package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerpetualCachePutGet(t *testing.T) {
	c := NewPerpetualCache("ns")
	c.Put("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, 1, c.Size())
}

func TestLruCacheEvictsOldest(t *testing.T) {
	c := NewLruCache(NewPerpetualCache("ns"), 2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // evicts "a"

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestSynchronizedCacheDelegates(t *testing.T) {
	c := NewSynchronizedCache(NewPerpetualCache("ns"))
	c.Put("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	c.Remove("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestBlockingCacheSerializesPerKey(t *testing.T) {
	c := NewBlockingCache(NewPerpetualCache("ns"))
	done := make(chan struct{})
	go func() {
		c.Get("k") // miss, acquires and holds the per-key lock
		time.Sleep(10 * time.Millisecond)
		c.Put("k", "v") // releases the lock
		close(done)
	}()
	time.Sleep(2 * time.Millisecond)
	v, ok := c.Get("k") // blocks until Put releases the lock
	<-done
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestBuilderDefaultChainRoundTrips(t *testing.T) {
	built, err := NewBuilder("ns").Size(4).Build()
	require.NoError(t, err)
	built.Put("k", "v")
	v, ok := built.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestBuilderBlockingInsertsBlockingCache(t *testing.T) {
	built, err := NewBuilder("ns").Blocking(true).Build()
	require.NoError(t, err)
	_, isBlocking := built.(*BlockingCache)
	assert.True(t, isBlocking)
}

func TestBuilderReadWriteFalseInsertsSerialized(t *testing.T) {
	built, err := NewBuilder("ns").ReadWrite(false).Build()
	require.NoError(t, err)
	_, isSerialized := built.(*SerializedCache)
	assert.True(t, isSerialized)
}
