package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUEvictionAtCapacity(t *testing.T) {
	c := New(3, 0)
	c.Put("a", 1, 0)
	c.Put("b", 2, 0)
	c.Put("c", 3, 0)
	c.Put("d", 4, 0)

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry is the one evicted")
	for _, k := range []string{"b", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, "entry %s survives", k)
	}
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestRecentAccessProtectsFromEviction(t *testing.T) {
	c := New(3, 0)
	c.Put("a", 1, 0)
	c.Put("b", 2, 0)
	c.Put("c", 3, 0)

	// Touch "a" so "b" becomes the LRU entry.
	_, ok := c.Get("a")
	assert.True(t, ok)

	c.Put("d", 4, 0)

	_, ok = c.Get("a")
	assert.True(t, ok, "recently accessed entry retained")
	_, ok = c.Get("b")
	assert.False(t, ok, "true LRU entry evicted")
}

func TestTTLExpiryIsAMiss(t *testing.T) {
	c := New(8, 0)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	c.nowFn = func() time.Time { return now }

	c.Put("k", "v", time.Minute)

	_, ok := c.Get("k")
	assert.True(t, ok, "fresh entry hits")

	now = now.Add(time.Minute + time.Nanosecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "any access past insertion+TTL misses")
	assert.Equal(t, 0, c.Len(), "expired entry dropped on contact")

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Expired)
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
}

func TestDefaultTTLApplies(t *testing.T) {
	c := New(8, time.Minute)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	c.nowFn = func() time.Time { return now }

	c.Put("k", "v", 0) // fall back to default

	now = now.Add(2 * time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestPutUpdatesExistingEntry(t *testing.T) {
	c := New(2, 0)
	c.Put("k", 1, 0)
	c.Put("k", 2, 0)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestInvalidate(t *testing.T) {
	c := New(4, 0)
	c.Put("k", 1, 0)
	c.Invalidate("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestSweepDropsOnlyExpired(t *testing.T) {
	c := New(16, 0)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	c.nowFn = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		c.Put(fmt.Sprintf("short-%d", i), i, time.Minute)
	}
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("long-%d", i), i, time.Hour)
	}

	now = now.Add(10 * time.Minute)
	removed := c.Sweep()

	assert.Equal(t, 4, removed)
	assert.Equal(t, 3, c.Len())
}
