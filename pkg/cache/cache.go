// Package cache implements the query-result cache used by the Unified
// Store: a bounded, TTL-expiring cache keyed by a deterministic
// fingerprint of the query parameters. Entries are never invalidated
// on write, only on TTL expiry or LRU eviction.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/core-nexus/ltm-service/pkg/storage"
)

// QueryRequest carries the subset of a query_memories call that
// determines the cache key. Mirrors core.QueryRequest; defined here
// rather than imported from pkg/core, which imports this package to
// wire up the Unified Store's cache.
type QueryRequest struct {
	Query          string
	Limit          int
	MinSimilarity  float64
	Filters        map[string]interface{}
	UserID         string
	ConversationID string
}

// QueryResponse is the cached shape of a query_memories result.
// Memories is []*storage.Memory rather than the Unified Store's own
// Memory type, for the same reason QueryRequest lives here instead of
// pkg/core.
type QueryResponse struct {
	Memories      []*storage.Memory      `json:"memories"`
	TotalFound    int                    `json:"total_found"`
	QueryTimeMS   float64                `json:"query_time_ms"`
	ProvidersUsed []string               `json:"providers_used"`
	CacheHit      bool                   `json:"cache_hit"`
	QueryMetadata map[string]interface{} `json:"query_metadata,omitempty"`
}

// Cache is the query-result cache contract. Two backends implement
// it: an in-process LRU (default) and a Redis-backed one for
// multi-instance deployments.
type Cache interface {
	Get(key string) (*QueryResponse, bool)
	Set(key string, value *QueryResponse)
	Clear()
}

// Key computes a deterministic fingerprint for a query request: a
// SHA-256 hash over canonical JSON of the query text, limit,
// min_similarity, sorted filter keys, user_id, and conversation_id.
// Equivalent query requests always hash identically regardless of map
// iteration order.
func Key(req *QueryRequest) string {
	filterKeys := make([]string, 0, len(req.Filters))
	for k := range req.Filters {
		filterKeys = append(filterKeys, k)
	}
	sort.Strings(filterKeys)

	sortedFilters := make(map[string]interface{}, len(req.Filters))
	for _, k := range filterKeys {
		sortedFilters[k] = req.Filters[k]
	}

	canonical := struct {
		Query          string                 `json:"query"`
		Limit          int                    `json:"limit"`
		MinSimilarity  float64                `json:"min_similarity"`
		Filters        map[string]interface{} `json:"filters"`
		UserID         string                 `json:"user_id"`
		ConversationID string                 `json:"conversation_id"`
	}{
		Query:          req.Query,
		Limit:          req.Limit,
		MinSimilarity:  req.MinSimilarity,
		Filters:        sortedFilters,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	}

	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type entry struct {
	value    *QueryResponse
	storedAt time.Time
}

// LocalCache is the default in-process cache backend: an LRU
// eviction policy (hashicorp/golang-lru) layered with a TTL check on
// read.
type LocalCache struct {
	mu  sync.RWMutex
	lru *lru.Cache[string, entry]
	ttl time.Duration
}

// NewLocalCache constructs a LocalCache bounded to maxEntries with
// the given TTL.
func NewLocalCache(maxEntries int, ttl time.Duration) (*LocalCache, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c, err := lru.New[string, entry](maxEntries)
	if err != nil {
		return nil, storage.NewProviderError("cache.NewLocalCache", err)
	}
	return &LocalCache{lru: c, ttl: ttl}, nil
}

// Get returns the cached response if present and not expired.
func (c *LocalCache) Get(key string) (*QueryResponse, bool) {
	c.mu.RLock()
	e, ok := c.lru.Get(key)
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.storedAt) > c.ttl {
		c.mu.Lock()
		c.lru.Remove(key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, evicting the least-recently-used entry
// if the cache is at capacity.
func (c *LocalCache) Set(key string, value *QueryResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry{value: value, storedAt: time.Now()})
}

// Clear empties the cache. Used only by the explicit ClearCache
// operation, never invoked implicitly on write.
func (c *LocalCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
