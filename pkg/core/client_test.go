package core_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-nexus/ltm-service/pkg/core"
)

func testCtx() context.Context {
	return context.Background()
}

// testConfig builds a local-only, mock-embedder Config so tests run
// without a PostgreSQL instance or an API key. The local provider is
// also the primary here, exercising the same initStorage path a
// degraded-startup deployment would take.
func testConfig(t *testing.T) *core.Config {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ltm_test.db")
	return &core.Config{
		Embedder: core.EmbedderConfig{Provider: "mock", Dimensions: 32},
		Local: core.ProviderConfig{
			Name:    "local",
			Enabled: true,
			Primary: true,
			Config:  map[string]interface{}{"db_path": dbPath},
		},
		Cache: core.CacheConfig{Backend: "memory", TTLSeconds: 300, MaxEntries: 100},
		Dedup: core.DedupConfig{Mode: "off"},
		ADM: core.ADMConfig{
			Enabled:                true,
			WeightQuality:          0.3,
			WeightRelevance:        0.4,
			WeightIntel:            0.3,
			ConsolidationThreshold: 0.8,
			PruningThreshold:       0.2,
		},
		Resilience: core.ResilienceConfig{BreakerMaxFailures: 5, BreakerResetSeconds: 30},
	}
}

func TestNewClientRequiresAtLeastOneProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Local.Enabled = false
	_, err := core.NewClient(cfg)
	assert.Error(t, err)
}

func TestStoreThenGetByID(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	stored, err := c.Store(testCtx(), "remember to water the plants")
	require.NoError(t, err)

	fetched, err := c.GetByID(testCtx(), stored.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Content, fetched.Content)
}

func TestQueryFindsStoredMemory(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Store(testCtx(), "the eiffel tower is in paris")
	require.NoError(t, err)

	resp, err := c.Query(testCtx(), &core.QueryRequest{Query: "the eiffel tower is in paris", Limit: 5})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(resp.Memories), 1)
}

func TestQueryEmptyStringUsesRecentPath(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Store(testCtx(), "first memory")
	require.NoError(t, err)
	_, err = c.Store(testCtx(), "second memory")
	require.NoError(t, err)

	resp, err := c.Query(testCtx(), &core.QueryRequest{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, resp.Memories, 2)
}

func TestQueryCacheHitOnRepeat(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Store(testCtx(), "cached lookup target")
	require.NoError(t, err)

	req := &core.QueryRequest{Query: "cached lookup target", Limit: 5}
	first, err := c.Query(testCtx(), req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := c.Query(testCtx(), req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
}

func TestClearCacheForcesRecompute(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	req := &core.QueryRequest{Query: "something", Limit: 5}
	_, err = c.Query(testCtx(), req)
	require.NoError(t, err)

	c.ClearCache()

	second, err := c.Query(testCtx(), req)
	require.NoError(t, err)
	assert.False(t, second.CacheHit)
}

func TestDeleteRemovesMemory(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	stored, err := c.Store(testCtx(), "ephemeral note")
	require.NoError(t, err)

	ok, err := c.Delete(testCtx(), stored.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.GetByID(testCtx(), stored.ID)
	assert.Error(t, err)
}

func TestHealthReportsRegisteredProviders(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	health := c.Health(testCtx())
	assert.Contains(t, health, "local")
	assert.Equal(t, core.StatusHealthy, health["local"].Status)
}

func TestStatsTrackStoresAndQueries(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Store(testCtx(), "tracked memory")
	require.NoError(t, err)
	_, err = c.Query(testCtx(), &core.QueryRequest{Limit: 5})
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.TotalStores)
	assert.Equal(t, int64(1), stats.TotalQueries)
}

func TestEmergencyAllBypassesSimilarity(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Store(testCtx(), "emergency target")
	require.NoError(t, err)

	results, err := c.EmergencyAll(testCtx(), 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestEmergencyFuzzyMatchesSubstring(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Store(testCtx(), "the quick brown fox jumps")
	require.NoError(t, err)
	_, err = c.Store(testCtx(), "totally unrelated content")
	require.NoError(t, err)

	results, err := c.EmergencyFuzzy(testCtx(), "quick fox", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "quick brown fox")
}

func TestSuggestEvolutionForFreshMemory(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	stored, err := c.Store(testCtx(), "remember to renew the passport before travel")
	require.NoError(t, err)

	hint, err := c.SuggestEvolution(testCtx(), stored.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, hint.Strategy)
	assert.GreaterOrEqual(t, hint.Confidence, 0.0)
	assert.LessOrEqual(t, hint.Confidence, 1.0)
	assert.InDelta(t, 1.0, hint.Retention, 0.01)
}

func TestSuggestEvolutionUnknownIDReturnsError(t *testing.T) {
	c, err := core.NewClient(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.SuggestEvolution(testCtx(), uuid.New())
	assert.Error(t, err)
}

func TestReplicationDoesNotBlockStore(t *testing.T) {
	cfg := testConfig(t)
	// an unreachable secondary gives Store a replication target
	cfg.Cloud = core.ProviderConfig{
		Name:           "cloud",
		Enabled:        true,
		TimeoutSeconds: 1,
		Config:         map[string]interface{}{"endpoint": "http://127.0.0.1:1"},
	}
	c, err := core.NewClient(cfg)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	start := time.Now()
	_, err = c.Store(testCtx(), "fast write")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
