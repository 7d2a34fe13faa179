package modelselect

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader fetches the full position→model map from durable storage.
type Loader func(ctx context.Context) (map[string]string, error)

// Cache is a TTL-based ConfigSource with singleflight coalescing, so
// concurrent selectors refreshing past TTL share one Store round trip
// instead of stampeding it.
type Cache struct {
	mu       sync.RWMutex
	configs  map[string]string
	loadedAt time.Time
	ttl      time.Duration
	group    singleflight.Group
	load     Loader
}

// NewCache creates a config cache with the given refresh interval.
func NewCache(load Loader, ttl time.Duration) *Cache {
	return &Cache{load: load, ttl: ttl}
}

// Resolve returns the model configured for position, refreshing the cache
// first if it is empty or past its TTL.
func (c *Cache) Resolve(ctx context.Context, position string) (string, bool) {
	configs, err := c.configsFresh(ctx)
	if err != nil {
		// A stale cache beats a hard failure: the selector falls back to
		// hardcoded defaults when a position is simply missing.
		c.mu.RLock()
		configs = c.configs
		c.mu.RUnlock()
	}
	modelID, ok := configs[position]
	return modelID, ok
}

// Invalidate forces the next Resolve call to reload from the Loader.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

func (c *Cache) configsFresh(ctx context.Context) (map[string]string, error) {
	c.mu.RLock()
	if c.configs != nil && time.Since(c.loadedAt) < c.ttl {
		configs := c.configs
		c.mu.RUnlock()
		return configs, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do("load", func() (any, error) {
		c.mu.RLock()
		if c.configs != nil && time.Since(c.loadedAt) < c.ttl {
			configs := c.configs
			c.mu.RUnlock()
			return configs, nil
		}
		c.mu.RUnlock()

		configs, err := c.load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.configs = configs
		c.loadedAt = time.Now()
		c.mu.Unlock()

		return configs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]string), nil
}
