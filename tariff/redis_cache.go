package tariff

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/tariffs/internal/logger"
)

const defaultRedisTimeout = 2 * time.Second

// RedisTariffCache shares the active tariff list between server replicas.
// Redis failures degrade to cache misses so evaluation falls back to the store.
type RedisTariffCache struct {
	client  redis.Cmdable
	key     string
	config  CacheConfig
	timeout time.Duration
}

// NewRedisTariffCache creates a cache under the key "tariffs:<scope>:active"
func NewRedisTariffCache(client redis.Cmdable, scope string, config CacheConfig) *RedisTariffCache {
	return &RedisTariffCache{
		client:  client,
		key:     "tariffs:" + scope + ":active",
		config:  config,
		timeout: defaultRedisTimeout,
	}
}

func (c *RedisTariffCache) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// Get retrieves cached tariffs, returns nil on miss or Redis error
func (c *RedisTariffCache) Get() []*Tariff {
	ctx, cancel := c.ctx()
	defer cancel()

	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("redis tariff cache get failed", "key", c.key, "error", err)
		}
		return nil
	}

	var tariffs []*Tariff
	if err := json.Unmarshal(data, &tariffs); err != nil {
		logger.Warn("redis tariff cache holds undecodable payload", "key", c.key, "error", err)
		return nil
	}
	if tariffs == nil {
		tariffs = []*Tariff{}
	}
	return tariffs
}

// Set stores tariffs as JSON with the configured TTL
func (c *RedisTariffCache) Set(tariffs []*Tariff) {
	if tariffs == nil {
		tariffs = []*Tariff{}
	}
	data, err := json.Marshal(tariffs)
	if err != nil {
		logger.Warn("failed to encode tariffs for redis cache", "key", c.key, "error", err)
		return
	}

	ctx, cancel := c.ctx()
	defer cancel()

	if err := c.client.Set(ctx, c.key, data, c.config.TTL).Err(); err != nil {
		logger.Warn("redis tariff cache set failed", "key", c.key, "error", err)
	}
}

// Invalidate deletes the cached list
func (c *RedisTariffCache) Invalidate() {
	ctx, cancel := c.ctx()
	defer cancel()

	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		logger.Warn("redis tariff cache invalidate failed", "key", c.key, "error", err)
	}
}

// IsValid returns true if the key is present
func (c *RedisTariffCache) IsValid() bool {
	ctx, cancel := c.ctx()
	defer cancel()

	n, err := c.client.Exists(ctx, c.key).Result()
	return err == nil && n > 0
}
