package tariff

import "time"

// TariffCache caches the list of active tariffs so evaluation requests do not
// hit the store. Implementations exist for process memory and Redis.
type TariffCache interface {
	// Get retrieves cached tariffs, returns nil if cache miss or expired
	Get() []*Tariff

	// Set stores tariffs in cache
	Set(tariffs []*Tariff)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Zero means no expiration (invalidated on mutations only).
	TTL time.Duration
}

// DefaultCacheConfig returns the default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
