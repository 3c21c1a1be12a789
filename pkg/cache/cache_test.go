package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetPutMiss(t *testing.T) {
	c, err := New[string](2)
	require.NoError(t, err)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", "compiled-a")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "compiled-a", v)

	stats := c.Stats()
	assert.EqualValues(t, 2, stats.Lookups)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 1, stats.Inserts)
}

func TestCacheEvictsBeyondCapacity(t *testing.T) {
	c, err := New[int](1)
	require.NoError(t, err)

	c.Put("a", 1)
	c.Put("b", 2)

	_, ok := c.Get("a")
	assert.False(t, ok, "a should have been evicted once b was inserted")
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.EqualValues(t, 1, c.Stats().Evicted)
}

func TestCachePurgeClearsAll(t *testing.T) {
	c, err := New[int](4)
	require.NoError(t, err)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Purge()
	assert.Equal(t, 0, c.Len())
}
