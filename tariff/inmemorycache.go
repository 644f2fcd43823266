package tariff

import (
	"sync"
	"time"
)

// InMemoryTariffCache is a process-local TariffCache, safe for concurrent use
type InMemoryTariffCache struct {
	tariffs  []*Tariff
	cachedAt time.Time
	config   CacheConfig
	now      func() time.Time
	mu       sync.RWMutex
	isValid  bool
}

// NewInMemoryTariffCache creates a new in-memory tariff cache
func NewInMemoryTariffCache(config CacheConfig) *InMemoryTariffCache {
	return &InMemoryTariffCache{
		config: config,
		now:    time.Now,
	}
}

func (c *InMemoryTariffCache) expired() bool {
	return c.config.TTL > 0 && c.now().Sub(c.cachedAt) > c.config.TTL
}

// Get returns a copy of the cached tariffs, or nil if invalid or expired
func (c *InMemoryTariffCache) Get() []*Tariff {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isValid || c.expired() {
		return nil
	}

	out := make([]*Tariff, len(c.tariffs))
	copy(out, c.tariffs)
	return out
}

// Set stores a copy of tariffs in cache
func (c *InMemoryTariffCache) Set(tariffs []*Tariff) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tariffs = make([]*Tariff, len(tariffs))
	copy(c.tariffs, tariffs)
	c.cachedAt = c.now()
	c.isValid = true
}

// Invalidate clears the cache
func (c *InMemoryTariffCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isValid = false
	c.tariffs = nil
}

// IsValid returns true if cache contains valid data
func (c *InMemoryTariffCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.isValid && !c.expired()
}
