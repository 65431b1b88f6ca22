package metadata

import (
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// KVCache is a short-lived read-through cache in front of a remote Store
type KVCache struct {
	mu       sync.RWMutex
	entries  map[string]cacheEntry
	ttl      time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// CacheStats is a snapshot of cache occupancy
type CacheStats struct {
	Total   int
	Expired int
	TTL     time.Duration
}

// NewKVCache creates a cache and starts its cleanup goroutine
func NewKVCache(ttl time.Duration) *KVCache {
	c := &KVCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns a live entry
func (c *KVCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

// Set stores value for the cache TTL
func (c *KVCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Delete removes key
func (c *KVCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// DeletePrefix removes every key under prefix
func (c *KVCache) DeletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

func (c *KVCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *KVCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (c *KVCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Stats returns a snapshot of the cache
func (c *KVCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{Total: len(c.entries), TTL: c.ttl}
	now := c.now()
	for _, entry := range c.entries {
		if now.After(entry.expiresAt) {
			stats.Expired++
		}
	}
	return stats
}
