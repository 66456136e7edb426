package intelligence_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/core-nexus/ltm-service/pkg/intelligence"
	"github.com/core-nexus/ltm-service/pkg/storage"
)

func TestContentHashIsDeterministic(t *testing.T) {
	a := intelligence.ContentHash("hello world")
	b := intelligence.ContentHash("hello world")
	c := intelligence.ContentHash("hello there")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestContentHashIgnoresCaseAndSurroundingWhitespace(t *testing.T) {
	a := intelligence.ContentHash("Hello, World!")
	b := intelligence.ContentHash(" hello, world! ")
	require.Equal(t, a, b)
}

func TestCheckReturnsUniqueWhenModeOff(t *testing.T) {
	svc := intelligence.NewDedupService(nil, intelligence.DedupOff, 0.95, false)
	result := svc.Check(context.Background(), uuid.New(), "anything", 0.5, "u1", nil, nil)
	require.Equal(t, intelligence.DecisionUnique, result.Decision)
	require.False(t, result.IsDuplicate)
}

func TestCheckExactHashMatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	existingID := uuid.New()
	hash := intelligence.ContentHash("duplicate content")

	mock.ExpectQuery("SELECT memory_id FROM memory_content_hashes").
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows([]string{"memory_id"}).AddRow(existingID.String()))
	mock.ExpectExec("INSERT INTO deduplication_reviews").WillReturnResult(sqlmock.NewResult(1, 1))

	svc := intelligence.NewDedupService(db, intelligence.DedupActive, 0.95, false)
	result := svc.Check(context.Background(), uuid.New(), "duplicate content", 0.5, "u1", nil, nil)

	require.True(t, result.IsDuplicate)
	require.Equal(t, intelligence.DecisionDuplicate, result.Decision)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckBusinessRuleDifferentUserIsUnique(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT memory_id FROM memory_content_hashes").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO deduplication_reviews").WillReturnResult(sqlmock.NewResult(1, 1))

	svc := intelligence.NewDedupService(db, intelligence.DedupActive, 0.9, false)
	sim := 0.97
	neighbor := &storage.Memory{
		ID:              uuid.New(),
		UserID:          "other-user",
		ImportanceScore: 0.5,
		CreatedAt:       time.Now(),
	}
	result := svc.Check(context.Background(), uuid.New(), "new content", 0.5, "this-user", neighbor, &sim)

	require.Equal(t, intelligence.DecisionUnique, result.Decision)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckBusinessRuleOldMemoryNeedsReview(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT memory_id FROM memory_content_hashes").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO deduplication_reviews").WillReturnResult(sqlmock.NewResult(1, 1))

	svc := intelligence.NewDedupService(db, intelligence.DedupActive, 0.9, false)
	sim := 0.97
	neighbor := &storage.Memory{
		ID:              uuid.New(),
		UserID:          "same-user",
		ImportanceScore: 0.5,
		CreatedAt:       time.Now().Add(-40 * 24 * time.Hour),
	}
	result := svc.Check(context.Background(), uuid.New(), "new content", 0.5, "same-user", neighbor, &sim)

	require.Equal(t, intelligence.DecisionReviewNeeded, result.Decision)
	require.NoError(t, mock.ExpectationsWereMet())
}
