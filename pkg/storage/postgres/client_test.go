package postgres

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/core-nexus/ltm-service/pkg/storage"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &Client{
		db:             db,
		tableName:      "vector_memories",
		dimensions:     4,
		distanceMetric: storage.MetricCosine,
		indexType:      storage.IndexTypeHNSW,
	}, mock
}

func TestStoreUsesPresetID(t *testing.T) {
	c, mock := newMockClient(t)
	presetID := uuid.New()

	mock.ExpectExec("INSERT INTO vector_memories").WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := c.Store(context.Background(), "content", []float32{1, 2, 3, 4}, map[string]interface{}{"_preset_id": presetID})
	require.NoError(t, err)
	require.Equal(t, presetID, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryReturnsEmptyOnError(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectQuery("SELECT id, content, metadata").WillReturnError(errBoom)

	results, err := c.Query(context.Background(), []float32{1, 2, 3, 4}, 5, nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestGetReturnsNotFound(t *testing.T) {
	c, mock := newMockClient(t)
	id := uuid.New()
	mock.ExpectQuery("SELECT id, content, metadata").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := c.Get(context.Background(), id)
	require.Error(t, err)
}

func TestDeleteReportsNoMatch(t *testing.T) {
	c, mock := newMockClient(t)
	id := uuid.New()
	mock.ExpectExec("DELETE FROM vector_memories").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := c.Delete(context.Background(), id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHealthCheckReportsMissingExtension(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	c := &Client{db: db, tableName: "vector_memories", dimensions: 4, distanceMetric: storage.MetricCosine, indexType: storage.IndexTypeHNSW}

	mock.ExpectPing()
	mock.ExpectQuery("SELECT extversion").WillReturnError(sql.ErrNoRows)

	health, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, storage.StatusError, health.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSimilarityFromDistanceCosine(t *testing.T) {
	require.InDelta(t, 1.0, similarityFromDistance(storage.MetricCosine, 0.0), 0.0001)
	require.InDelta(t, 0.0, similarityFromDistance(storage.MetricCosine, 2.0), 0.0001)
}

func TestSimilarityFromDistanceL2(t *testing.T) {
	require.InDelta(t, 1.0, similarityFromDistance(storage.MetricL2, 0.0), 0.0001)
	require.InDelta(t, 0.5, similarityFromDistance(storage.MetricL2, 1.0), 0.0001)
}

func TestVectorStringRoundTrip(t *testing.T) {
	original := []float32{1.5, -2.25, 0, 3}
	parsed, err := parseVectorString(vectorToString(original))
	require.NoError(t, err)
	require.Equal(t, original, parsed)
}

func TestBuildWhereClauseOnlyRecognizedFilters(t *testing.T) {
	clause, args := buildWhereClause(map[string]interface{}{
		storage.FilterUserID: "u1",
		"unknown_key":        "ignored",
	}, 2)
	require.Contains(t, clause, "user_id = $2")
	require.Len(t, args, 1)
}

func TestCreateIndexImplementsIndexCreator(t *testing.T) {
	c, mock := newMockClient(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 10; i++ {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	err := c.CreateIndex(context.Background(), string(storage.IndexTypeIVFFlat), string(storage.MetricL2))
	require.NoError(t, err)
	require.Equal(t, storage.IndexTypeIVFFlat, c.indexType)
}

var errBoom = boomErr{}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }
