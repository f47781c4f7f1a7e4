// Package cache memoises analytics reports per scope and load generation.
package cache

import (
	"sync"
	"time"

	"taskdash/internal/analytics"
)

// Entry is a cached report with its metadata.
type Entry struct {
	Report     analytics.Report
	ComputedAt time.Time
	Generation uint64
}

// Cache holds analytics reports keyed by scope. An entry is reused only for
// the generation it was computed from and while it is younger than the TTL.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache. A ttl of 0 keeps entries until the generation changes.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetOrCompute returns the entry for key, calling compute when there is no
// fresh entry for generation. hit reports whether the cached value was used.
func (c *Cache) GetOrCompute(key string, generation uint64, compute func() analytics.Report) (entry Entry, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && e.Generation == generation && !c.expired(e) {
		return e, true
	}

	e := Entry{Report: compute(), ComputedAt: c.now(), Generation: generation}
	c.entries[key] = e
	return e, false
}

func (c *Cache) expired(e Entry) bool {
	return c.ttl > 0 && c.now().Sub(e.ComputedAt) >= c.ttl
}

// Evict removes one entry.
func (c *Cache) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
