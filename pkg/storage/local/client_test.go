package local_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/core-nexus/ltm-service/pkg/storage"
	"github.com/core-nexus/ltm-service/pkg/storage/local"
)

func newTestClient(t *testing.T) *local.Client {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "local_test.db")
	c, err := local.NewClient(context.Background(), &local.Config{
		DBPath:     dbPath,
		TableName:  "memories",
		Dimensions: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStoreAndGet(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.Store(ctx, "hello world", []float32{1, 0, 0, 0}, map[string]interface{}{"k": "v"})
	require.NoError(t, err)

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "hello world", got.Content)
	require.Equal(t, "v", got.Metadata["k"])
}

func TestQueryRanksBySimilarity(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Store(ctx, "aligned", []float32{1, 0, 0, 0}, nil)
	require.NoError(t, err)
	_, err = c.Store(ctx, "orthogonal", []float32{0, 1, 0, 0}, nil)
	require.NoError(t, err)

	results, err := c.Query(ctx, []float32{1, 0, 0, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "aligned", results[0].Content)
}

func TestQueryFiltersByUserID(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Store(ctx, "owned by a", []float32{1, 0, 0, 0}, map[string]interface{}{storage.FilterUserID: "a"})
	require.NoError(t, err)
	_, err = c.Store(ctx, "owned by b", []float32{1, 0, 0, 0}, map[string]interface{}{storage.FilterUserID: "b"})
	require.NoError(t, err)

	results, err := c.Query(ctx, []float32{1, 0, 0, 0}, 5, map[string]interface{}{storage.FilterUserID: "a"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "owned by a", results[0].Content)
}

func TestGetRecentOrdersByCreatedAtDesc(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Store(ctx, "first", []float32{1, 0, 0, 0}, nil)
	require.NoError(t, err)
	_, err = c.Store(ctx, "second", []float32{0, 1, 0, 0}, nil)
	require.NoError(t, err)

	results, err := c.GetRecent(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "second", results[0].Content)
}

func TestDeleteRemovesRow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.Store(ctx, "ephemeral", []float32{1, 0, 0, 0}, nil)
	require.NoError(t, err)

	ok, err := c.Delete(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = c.Get(ctx, id)
	require.Error(t, err)
}

func TestHealthCheckReportsHealthy(t *testing.T) {
	c := newTestClient(t)
	health, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, storage.StatusHealthy, health.Status)
}
