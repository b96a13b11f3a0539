// Package cache memoizes per-pattern validation decisions keyed by content
// fingerprint. Bounded size with LRU eviction; entries also expire by TTL
// independently of their LRU position.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Stats are the observability counters the cache maintains.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Expired   uint64 `json:"expired"`
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
}

type entry struct {
	key        string
	value      any
	insertedAt time.Time
	expiresAt  time.Time
}

// Cache is a fingerprint-addressed LRU with per-entry TTL. Safe for
// concurrent use; it owns its internal synchronization.
type Cache struct {
	mu         sync.Mutex
	capacity   int
	defaultTTL time.Duration
	order      *list.List // front = most recently used
	entries    map[string]*list.Element
	stats      Stats
	nowFn      func() time.Time
}

// New builds a cache with the given capacity and default TTL. Capacity must
// be positive; a non-positive TTL means entries only leave via LRU pressure.
func New(capacity int, defaultTTL time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 128
	}
	return &Cache{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		order:      list.New(),
		entries:    make(map[string]*list.Element, capacity),
		nowFn:      time.Now,
	}
}

// Get returns the cached value for the fingerprint. An entry past its TTL is
// a miss regardless of recency and is dropped on the spot.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	ent := el.Value.(*entry)
	if !ent.expiresAt.IsZero() && c.nowFn().After(ent.expiresAt) {
		c.removeLocked(el)
		c.stats.Expired++
		c.stats.Misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return ent.value, true
}

// Put stores a value under the fingerprint. ttl <= 0 falls back to the
// cache's default TTL. Inserting beyond capacity evicts the LRU entry.
func (c *Cache) Put(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.nowFn()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*entry)
		ent.value = value
		ent.insertedAt = now
		ent.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&entry{key: key, value: value, insertedAt: now, expiresAt: expiresAt})
	c.entries[key] = el
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.stats.Evictions++
	}
}

// Invalidate drops the entry for the fingerprint if present.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// Sweep drops every expired entry. Intended for a periodic background task;
// expiry is already enforced lazily on Get.
func (c *Cache) Sweep() int {
	now := c.nowFn()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		ent := el.Value.(*entry)
		if !ent.expiresAt.IsZero() && now.After(ent.expiresAt) {
			c.removeLocked(el)
			c.stats.Expired++
			removed++
		}
		el = prev
	}
	return removed
}

// Stats returns a copy of the counters plus current size.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.order.Len()
	s.Capacity = c.capacity
	return s
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) removeLocked(el *list.Element) {
	ent := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.entries, ent.key)
}
