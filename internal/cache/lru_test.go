package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	// Given: a cache of two entries
	c := New[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)

	// When: "a" is touched and a third key arrives
	_, ok := c.Get("a")
	require.True(t, ok)
	evicted := c.Add("c", 3)

	// Then: "b" is the one evicted
	assert.True(t, evicted)
	_, ok = c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_CloneIsolatesCallers(t *testing.T) {
	clone := func(in []string) []string { return append([]string(nil), in...) }
	c := NewWithClone[string, []string](4, clone)

	original := []string{"x", "y"}
	c.Add("k", original)
	original[0] = "mutated-after-add"

	first, ok := c.Get("k")
	require.True(t, ok)
	first[1] = "mutated-by-caller"

	second, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, second)
}

func TestLRU_ZeroSizeFallsBackToOne(t *testing.T) {
	c := New[int, int](0)
	c.Add(1, 1)
	c.Add(2, 2)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := New[string, int](64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%d-%d", g, i%32)
				c.Add(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
