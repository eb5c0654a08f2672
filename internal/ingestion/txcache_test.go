package ingestion

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTxCache_AddAndHas(t *testing.T) {
	cache := NewTxCache(10)

	assert.False(t, cache.Has("tx1"))

	cache.Add("tx1")
	assert.True(t, cache.Has("tx1"))
	assert.Equal(t, 1, cache.Len())

	// Adding again is a no-op
	cache.Add("tx1")
	assert.Equal(t, 1, cache.Len())
}

func TestTxCache_IgnoresEmpty(t *testing.T) {
	cache := NewTxCache(10)
	cache.Add("")
	assert.Equal(t, 0, cache.Len())
	assert.False(t, cache.Has(""))
}

func TestTxCache_EvictsOldestWhenFull(t *testing.T) {
	cache := NewTxCache(3)

	cache.Add("tx1")
	cache.Add("tx2")
	cache.Add("tx3")
	assert.Equal(t, 3, cache.Len())

	cache.Add("tx4")
	assert.Equal(t, 3, cache.Len())
	assert.False(t, cache.Has("tx1"), "oldest entry should be evicted")
	assert.True(t, cache.Has("tx2"))
	assert.True(t, cache.Has("tx3"))
	assert.True(t, cache.Has("tx4"))
}

func TestTxCache_Warm(t *testing.T) {
	cache := NewTxCache(5)

	var ids []string
	for i := 0; i < 8; i++ {
		ids = append(ids, fmt.Sprintf("tx%d", i))
	}
	cache.Warm(ids)

	assert.Equal(t, 5, cache.Len())
	// Oldest three fell off; the most recent five survive
	assert.False(t, cache.Has("tx0"))
	assert.False(t, cache.Has("tx2"))
	assert.True(t, cache.Has("tx3"))
	assert.True(t, cache.Has("tx7"))
}

func TestTxCache_DefaultCapacity(t *testing.T) {
	cache := NewTxCache(0)
	for i := 0; i < DefaultCacheCapacity+5; i++ {
		cache.Add(fmt.Sprintf("tx%d", i))
	}
	assert.Equal(t, DefaultCacheCapacity, cache.Len())
}
