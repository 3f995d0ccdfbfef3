package resolver

import "sync"

type cacheKey struct {
	origin string
	intent string
}

// OriginCache remembers, per hostname, which strategy last worked for an
// intent. It is process-local and unbounded; entries only leave via Evict.
type OriginCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]string
}

// NewOriginCache returns an empty cache.
func NewOriginCache() *OriginCache {
	return &OriginCache{entries: make(map[cacheKey]string)}
}

// TryFast returns the remembered strategy for (origin, intent), if any.
func (c *OriginCache) TryFast(origin, intent string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	strategy, ok := c.entries[cacheKey{origin, intent}]
	return strategy, ok
}

// Record stores strategy for (origin, intent), replacing any prior entry.
func (c *OriginCache) Record(origin, intent, strategy string) {
	c.mu.Lock()
	c.entries[cacheKey{origin, intent}] = strategy
	c.mu.Unlock()
}

// Evict forgets (origin, intent).
func (c *OriginCache) Evict(origin, intent string) {
	c.mu.Lock()
	delete(c.entries, cacheKey{origin, intent})
	c.mu.Unlock()
}

// Len reports the number of remembered entries.
func (c *OriginCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
