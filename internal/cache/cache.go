package cache

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/resonantmigration/worldstate-service/internal/models"
)

// Cache stores assembled world states per quantized location.
// Get returns the cached state if present and not expired; Set stores with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.WorldState, bool, error)
	Set(ctx context.Context, key string, value models.WorldState, ttl time.Duration) error
}

// Key quantizes coordinates to 2 decimals (~1 km) so near-identical
// requests share one entry.
func Key(lat, lng float64) string {
	return formatCoord(lat) + "," + formatCoord(lng)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// InMemoryCache implements Cache with a mutex-guarded map and lazy TTL
// expiry: stale entries are discarded on lookup, no background sweep.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     models.WorldState
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves the cached world state for the key if present and not expired.
// Returns (state, true, nil) on hit, (zero, false, nil) on miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.WorldState, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.WorldState{}, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.WorldState{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores a world state with the specified TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.WorldState, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
