package cache_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/core-nexus/ltm-service/pkg/cache"
)

func newMiniredisCache(t *testing.T) *cache.RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.NewRedisCache(mr.Addr(), time.Minute)
}

func TestRedisCacheSetGet(t *testing.T) {
	c := newMiniredisCache(t)

	c.Set("k1", &cache.QueryResponse{TotalFound: 7})

	got, ok := c.Get("k1")
	require.True(t, ok)
	require.Equal(t, 7, got.TotalFound)
}

func TestRedisCacheMissReturnsFalse(t *testing.T) {
	c := newMiniredisCache(t)

	_, ok := c.Get("missing")
	require.False(t, ok)
}

func TestRedisCacheClearFlushesAllKeys(t *testing.T) {
	c := newMiniredisCache(t)
	c.Set("k1", &cache.QueryResponse{})
	c.Clear()

	_, ok := c.Get("k1")
	require.False(t, ok)
}
