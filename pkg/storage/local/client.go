// Package local provides the embedded fallback Vector Provider backed by
// SQLite. When enabled it receives replicated writes, becomes the
// primary when marked primary or when pgvector did not initialize, and
// serves reads
// when it is the primary or a query names it.
//
// SQLite has no native vector type, so embeddings are stored as JSON
// arrays in a TEXT column and similarity is computed in memory after
// a full table scan. That is fine at the scale this provider is meant
// for: a single-node fallback, not the system of record.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/core-nexus/ltm-service/pkg/storage"
)

// Client implements storage.VectorStore over a local SQLite file.
type Client struct {
	db         *sql.DB
	tableName  string
	dimensions int
	logger     *zap.SugaredLogger
}

// Config configures the local provider.
type Config struct {
	DBPath     string
	TableName  string
	Dimensions int
	// Logger receives file-open and schema-setup diagnostics. A nil
	// Logger is replaced with a no-op sink.
	Logger *zap.SugaredLogger
}

// NewClient opens (creating if absent) the SQLite file at cfg.DBPath
// and ensures its schema exists.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if cfg.TableName == "" {
		cfg.TableName = "local_memories"
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storage.NewProviderError("local.NewClient", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		logger.Errorw("local sqlite open failed", "path", cfg.DBPath, "error", err)
		return nil, storage.NewProviderError("local.NewClient", err)
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Errorw("local sqlite ping failed", "path", cfg.DBPath, "error", err)
		return nil, storage.NewProviderError("local.NewClient", err)
	}

	c := &Client{db: db, tableName: cfg.TableName, dimensions: cfg.Dimensions, logger: logger}
	if err := c.initSchema(ctx); err != nil {
		logger.Errorw("local sqlite schema setup failed", "error", err)
		return nil, err
	}
	logger.Debugw("local provider ready", "path", cfg.DBPath, "table", cfg.TableName)
	return c, nil
}

func (c *Client) initSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			conversation_id TEXT,
			content TEXT NOT NULL,
			embedding TEXT NOT NULL,
			metadata TEXT,
			importance_score REAL DEFAULT 0,
			created_at DATETIME NOT NULL,
			last_accessed DATETIME,
			access_count INTEGER DEFAULT 0
		)
	`, c.tableName))
	if err != nil {
		return storage.NewProviderError("local.initSchema", err)
	}

	_, err = c.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id, created_at DESC)`,
		c.tableName, c.tableName))
	if err != nil {
		return storage.NewProviderError("local.initSchema", err)
	}
	return nil
}

// Store persists a memory, honoring metadata["_preset_id"] for idempotent
// re-invocation from the replication worker pool.
func (c *Client) Store(ctx context.Context, content string, embedding []float32, metadata map[string]interface{}) (uuid.UUID, error) {
	id := uuid.New()
	if presetID, ok := metadata["_preset_id"]; ok {
		if pid, ok := presetID.(uuid.UUID); ok {
			id = pid
		}
	}

	embJSON, err := json.Marshal(embedding)
	if err != nil {
		return uuid.Nil, storage.NewProviderError("local.Store", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return uuid.Nil, storage.NewProviderError("local.Store", err)
	}

	userID, _ := metadata[storage.FilterUserID].(string)
	convID, _ := metadata[storage.FilterConversationID].(string)
	importance, _ := metadata["importance_score"].(float64)

	_, err = c.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, user_id, conversation_id, content, embedding, metadata, importance_score, created_at, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET content=excluded.content, embedding=excluded.embedding, metadata=excluded.metadata
	`, c.tableName), id.String(), userID, convID, content, string(embJSON), string(metaJSON), importance, time.Now())
	if err != nil {
		return uuid.Nil, storage.NewProviderError("local.Store", err)
	}
	return id, nil
}

// Query performs a full-table scan, computing cosine similarity in
// memory and returning the top-limit matches. Provider failure (e.g. a
// malformed stored row) is swallowed per row rather than aborting the
// whole scan, matching the partial-results contract.
func (c *Client) Query(ctx context.Context, queryEmbedding []float32, limit int, filters map[string]interface{}) ([]*storage.Memory, error) {
	where, args := buildWhereClause(filters)
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, user_id, conversation_id, content, embedding, metadata, importance_score, created_at, last_accessed, access_count
		FROM %s %s
	`, c.tableName, where), args...)
	if err != nil {
		return []*storage.Memory{}, nil
	}
	defer func() { _ = rows.Close() }()

	var matches []*storage.Memory
	for rows.Next() {
		m, err := scanRow(rows)
		if err != nil {
			continue
		}
		sim := cosineSimilarity(queryEmbedding, m.Embedding)
		m.SimilarityScore = &sim
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		return *matches[i].SimilarityScore > *matches[j].SimilarityScore
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID.String())
	}
	c.bumpAccess(ctx, ids)

	return matches, nil
}

// GetRecent implements storage.RecentAccess via ORDER BY created_at DESC,
// never computing similarity against the embedding column.
func (c *Client) GetRecent(ctx context.Context, limit, offset int) ([]*storage.Memory, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, user_id, conversation_id, content, embedding, metadata, importance_score, created_at, last_accessed, access_count
		FROM %s ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, c.tableName), limit, offset)
	if err != nil {
		return []*storage.Memory{}, nil
	}
	defer func() { _ = rows.Close() }()

	var out []*storage.Memory
	for rows.Next() {
		m, err := scanRow(rows)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id uuid.UUID) (*storage.Memory, error) {
	row := c.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, user_id, conversation_id, content, embedding, metadata, importance_score, created_at, last_accessed, access_count
		FROM %s WHERE id = ?
	`, c.tableName), id.String())
	m, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, storage.NewProviderError("local.Get", storage.ErrNotFound)
	}
	if err != nil {
		return nil, storage.NewProviderError("local.Get", err)
	}
	return m, nil
}

func (c *Client) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.tableName), id.String())
	if err != nil {
		return false, storage.NewProviderError("local.Delete", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *Client) HealthCheck(ctx context.Context) (storage.Health, error) {
	if err := c.db.PingContext(ctx); err != nil {
		return storage.Health{Status: storage.StatusError, Details: map[string]interface{}{"error": err.Error()}}, nil
	}
	return storage.Health{Status: storage.StatusHealthy}, nil
}

func (c *Client) GetStats(ctx context.Context) (map[string]interface{}, error) {
	var count int64
	_ = c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.tableName)).Scan(&count)
	return map[string]interface{}{"provider": "local", "total_memories": count}, nil
}

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Client) bumpAccess(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		_, _ = c.db.ExecContext(ctx, fmt.Sprintf(
			`UPDATE %s SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`, c.tableName),
			time.Now(), id)
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(s scanner) (*storage.Memory, error) {
	var m storage.Memory
	var idStr string
	var userID, convID sql.NullString
	var embStr, metaStr sql.NullString
	var lastAccessed sql.NullTime

	if err := s.Scan(&idStr, &userID, &convID, &m.Content, &embStr, &metaStr, &m.ImportanceScore, &m.CreatedAt, &lastAccessed, &m.AccessCount); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	m.ID = id
	m.UserID = userID.String
	m.ConversationID = convID.String
	if lastAccessed.Valid {
		m.LastAccessed = lastAccessed.Time
	}

	if embStr.Valid && embStr.String != "" {
		if err := json.Unmarshal([]byte(embStr.String), &m.Embedding); err != nil {
			return nil, err
		}
	}
	if metaStr.Valid && metaStr.String != "" {
		_ = json.Unmarshal([]byte(metaStr.String), &m.Metadata)
	}
	return &m, nil
}

func buildWhereClause(filters map[string]interface{}) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if v, ok := filters[storage.FilterUserID].(string); ok && v != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, v)
	}
	if v, ok := filters[storage.FilterConversationID].(string); ok && v != "" {
		conditions = append(conditions, "conversation_id = ?")
		args = append(args, v)
	}
	if v, ok := filters[storage.FilterMinImportance].(float64); ok {
		conditions = append(conditions, "importance_score >= ?")
		args = append(args, v)
	}
	if v, ok := filters[storage.FilterStartTime].(time.Time); ok {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, v)
	}
	if v, ok := filters[storage.FilterEndTime].(time.Time); ok {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, v)
	}

	if len(conditions) == 0 {
		return "", args
	}
	clause := "WHERE " + conditions[0]
	for _, cnd := range conditions[1:] {
		clause += " AND " + cnd
	}
	return clause, args
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
