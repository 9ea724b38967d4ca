package fetch

import (
	"sync"
	"time"
)

type cacheEntry struct {
	result    *Result
	createdAt time.Time
	expiresAt time.Time
}

// Cache holds successful fetches in memory for a fixed TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache with the given size limit and TTL.
// A non-positive size or TTL disables caching.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *Cache) enabled() bool { return c != nil && c.maxSize > 0 && c.ttl > 0 }

// Get returns a copy of the cached result for url, marked FromCache.
func (c *Cache) Get(url string) (*Result, bool) {
	if !c.enabled() {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[url]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	cp := *entry.result
	cp.FromCache = true
	return &cp, true
}

// Set stores r under url, evicting the oldest entry when full.
func (c *Cache) Set(url string, r *Result) {
	if !c.enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[url]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	now := c.now()
	c.entries[url] = &cacheEntry{result: r, createdAt: now, expiresAt: now.Add(c.ttl)}
}

// Size returns the number of entries, expired ones included.
func (c *Cache) Size() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.createdAt.Before(oldest) {
			oldestKey = key
			oldest = entry.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
