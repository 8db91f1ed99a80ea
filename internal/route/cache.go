package route

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/trip-sync/internal/models"
)

// Cache is a tiny in-memory cache for route lookups keyed by coords.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	v  models.RouteEstimate
	ts time.Time
}

// NewCache creates a cache with the provided TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(a, b models.Coord) string {
	return fmtCoord(a) + "->" + fmtCoord(b)
}

func fmtCoord(c models.Coord) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Get returns the cached estimate and true if present and not expired.
func (c *Cache) Get(a, b models.Coord) (models.RouteEstimate, bool) {
	k := keyFor(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return models.RouteEstimate{}, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return models.RouteEstimate{}, false
	}
	return e.v, true
}

// Set stores an estimate in the cache.
func (c *Cache) Set(a, b models.Coord, v models.RouteEstimate) {
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
}
