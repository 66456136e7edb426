package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the multi-instance cache backend, for deployments
// running more than one Unified Store process against the same
// providers.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to addr and returns a RedisCache with the
// given TTL.
func NewRedisCache(addr string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached response if present and unexpired. Redis'
// own key expiry enforces the TTL; a deserialization failure is
// treated as a miss rather than an error, matching the cache's
// fail-open policy.
func (c *RedisCache) Get(key string) (*QueryResponse, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var resp QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

// Set stores value under key with the cache's configured TTL.
func (c *RedisCache) Set(key string, value *QueryResponse) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, data, c.ttl).Err()
}

// Clear flushes the current database. Scoped to this service's
// configured Redis database; callers running a shared Redis instance
// should give the cache its own DB index.
func (c *RedisCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.client.FlushDB(ctx).Err()
}
