package githubapi

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL is the freshness window for cached GitHub responses.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	payload  []byte
	storedAt time.Time
}

// ResponseCache memoizes successful GET payloads by request URL for a fixed
// TTL. It is purely derived state: clearing it at any moment is always safe
// and only costs a future cache miss.
type ResponseCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewResponseCache creates a response cache. A non-positive TTL falls back to
// DefaultCacheTTL. The now func is injected for testability.
func NewResponseCache(ttl time.Duration, now func() time.Time) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ResponseCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached payload for a key, or false when the key is absent
// or its entry has aged past the TTL.
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		return nil, false
	}
	return entry.payload, true
}

// Set stores a payload under a key, overwriting any prior entry.
func (c *ResponseCache) Set(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{payload: payload, storedAt: c.now()}
}

// SweepExpired drops all entries older than the TTL and reports how many
// were removed.
func (c *ResponseCache) SweepExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear drops every entry. Called on credential change and on explicit
// user-initiated refresh.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len reports the current entry count.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartSweeper sweeps expired entries every TTL interval until ctx is done.
func (c *ResponseCache) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.SweepExpired()
			}
		}
	}()
}
