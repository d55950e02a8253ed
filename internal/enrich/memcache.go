package enrich

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultMemoryTTL is how long a process-local entry is served.
const DefaultMemoryTTL = 24 * time.Hour

// CachedAddress is one process-local cache entry.
type CachedAddress struct {
	Address  string
	Census   json.RawMessage
	Geocode  json.RawMessage
	StoredAt time.Time
}

// MemoryStats describes the process-local tier.
type MemoryStats struct {
	TotalEntries int   `json:"totalEntries"`
	FreshEntries int   `json:"freshEntries"`
	StaleEntries int   `json:"staleEntries"`
	TTL          int64 `json:"ttl"`
}

// MemoryCache is the process-local tier in front of the persistent cache.
// It is never authoritative. Expired entries are not evicted; they are
// ignored on read and dropped only by Clear, so the map grows for the
// lifetime of the process.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]CachedAddress
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryCache returns an empty cache. A non-positive ttl falls back to DefaultMemoryTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	return &MemoryCache{
		items: make(map[string]CachedAddress),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the entry for key when it is younger than the TTL.
func (c *MemoryCache) Get(key string) (CachedAddress, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(item.StoredAt) >= c.ttl {
		return CachedAddress{}, false
	}
	return item, true
}

// Set stores item under key, stamping it with the current time.
func (c *MemoryCache) Set(key string, item CachedAddress) {
	item.StoredAt = c.now()
	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
}

// Clear drops every entry and returns how many there were.
func (c *MemoryCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.items = make(map[string]CachedAddress)
	return n
}

// Stats splits the entries into fresh and stale by the TTL.
func (c *MemoryCache) Stats() MemoryStats {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := MemoryStats{TotalEntries: len(c.items), TTL: c.ttl.Milliseconds()}
	for _, item := range c.items {
		if now.Sub(item.StoredAt) < c.ttl {
			s.FreshEntries++
		} else {
			s.StaleEntries++
		}
	}
	return s
}
