// Package postgres implements the primary Vector Provider over
// PostgreSQL with the pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/core-nexus/ltm-service/pkg/storage"
)

// Client is the PostgreSQL + pgvector provider.
type Client struct {
	db            *sql.DB
	tableName     string
	dimensions    int
	distanceMetric storage.MetricType
	indexType     storage.IndexType
	logger        *zap.SugaredLogger
}

// Config carries the connection and schema parameters for Client.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	TableName      string
	Dimensions     int
	SSLMode        string
	DistanceMetric storage.MetricType
	IndexType      storage.IndexType
	MaxOpenConns   int
	MaxIdleConns   int
	// Logger receives per-connection and schema-setup diagnostics. A
	// nil Logger is replaced with a no-op sink.
	Logger *zap.SugaredLogger
}

// NewClient opens a connection pool and idempotently creates the
// schema and indexes described in the table design.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Errorw("pgvector connection pool open failed", "error", err)
		return nil, storage.NewProviderError("postgres.NewClient", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 2
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.Errorw("pgvector ping failed", "error", err)
		return nil, storage.NewProviderError("postgres.NewClient", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "vector_memories"
	}
	metric := cfg.DistanceMetric
	if metric == "" {
		metric = storage.MetricCosine
	}
	indexType := cfg.IndexType
	if indexType == "" {
		indexType = storage.IndexTypeHNSW
	}

	c := &Client{
		db:             db,
		tableName:      tableName,
		dimensions:     cfg.Dimensions,
		distanceMetric: metric,
		indexType:      indexType,
		logger:         logger,
	}

	if err := c.initSchema(ctx); err != nil {
		_ = db.Close()
		logger.Errorw("pgvector schema setup failed", "error", err)
		return nil, err
	}

	logger.Debugw("pgvector provider ready", "table", tableName, "dimensions", cfg.Dimensions)
	return c, nil
}

func (c *Client) initSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return storage.NewProviderError("postgres.initSchema", err)
	}

	tableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			content TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB DEFAULT '{}',
			user_id TEXT,
			conversation_id TEXT,
			importance_score FLOAT DEFAULT 0.5,
			created_at TIMESTAMP DEFAULT NOW(),
			last_accessed TIMESTAMP DEFAULT NOW(),
			access_count INTEGER DEFAULT 0
		)
	`, c.tableName, c.dimensions)
	if _, err := c.db.ExecContext(ctx, tableSQL); err != nil {
		return storage.NewProviderError("postgres.initSchema", err)
	}

	hashTableSQL := `
		CREATE TABLE IF NOT EXISTS memory_content_hashes (
			memory_id UUID PRIMARY KEY,
			content_hash TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT NOW()
		)
	`
	if _, err := c.db.ExecContext(ctx, hashTableSQL); err != nil {
		return storage.NewProviderError("postgres.initSchema", err)
	}
	if _, err := c.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS memory_content_hashes_hash_idx ON memory_content_hashes (content_hash)"); err != nil {
		return storage.NewProviderError("postgres.initSchema", err)
	}

	reviewsTableSQL := `
		CREATE TABLE IF NOT EXISTS deduplication_reviews (
			candidate_id UUID,
			existing_id UUID NOT NULL,
			similarity_score FLOAT,
			content_hash_match BOOLEAN,
			vector_similarity_score FLOAT,
			decision TEXT NOT NULL,
			decision_reason TEXT,
			auto_decision BOOLEAN DEFAULT TRUE,
			reviewed_by TEXT,
			reviewed_at TIMESTAMP DEFAULT NOW(),
			PRIMARY KEY (candidate_id, existing_id)
		)
	`
	if _, err := c.db.ExecContext(ctx, reviewsTableSQL); err != nil {
		return storage.NewProviderError("postgres.initSchema", err)
	}

	return c.createIndexes(ctx)
}

func (c *Client) createIndexes(ctx context.Context) error {
	table := c.tableName
	ops := distanceOps(c.distanceMetric)

	var vecIndexSQL string
	switch c.indexType {
	case storage.IndexTypeIVFFlat:
		vecIndexSQL = fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_embedding_ivf_idx ON %s
			USING ivfflat (embedding %s)
			WITH (lists = 1000)
		`, table, table, ops)
	default:
		vecIndexSQL = fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_embedding_hnsw_idx ON %s
			USING hnsw (embedding %s)
			WITH (m = 16, ef_construction = 64)
		`, table, table, ops)
	}

	stmts := []string{
		vecIndexSQL,
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_user_id_idx ON %s (user_id)", table, table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_conversation_id_idx ON %s (conversation_id)", table, table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_created_at_idx ON %s (created_at)", table, table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_importance_idx ON %s (importance_score)", table, table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_user_time_idx ON %s (user_id, created_at DESC)", table, table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_metadata_gin_idx ON %s USING gin (metadata)", table, table),
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			// index creation failing (e.g. already exists under a
			// concurrent initializer) is not fatal to startup.
			continue
		}
	}
	return nil
}

// distanceOps maps a metric to its pgvector operator class.
func distanceOps(metric storage.MetricType) string {
	switch metric {
	case storage.MetricL2:
		return "vector_l2_ops"
	case storage.MetricIP:
		return "vector_ip_ops"
	default:
		return "vector_cosine_ops"
	}
}

// distanceOperator maps a metric to its pgvector query operator.
func distanceOperator(metric storage.MetricType) string {
	switch metric {
	case storage.MetricL2:
		return "<->"
	case storage.MetricIP:
		return "<#>"
	default:
		return "<=>"
	}
}

// similarityFromDistance derives a [0,1]-ish similarity score from a
// raw distance value per the configured metric. For cosine,
// sim = max(0, 1-d); for L2, sim = 1/(1+d); for inner product the raw
// magnitude is clamped (open question in the design notes: this
// behavior is metric-specific, not normalized, matching the source).
func similarityFromDistance(metric storage.MetricType, distance float64) float64 {
	switch metric {
	case storage.MetricL2:
		return 1.0 / (1.0 + distance)
	case storage.MetricIP:
		if distance < 0 {
			distance = -distance
		}
		if distance > 1 {
			distance = 1
		}
		return distance
	default:
		sim := 1.0 - distance
		if sim < 0 {
			sim = 0
		}
		return sim
	}
}

// Store persists a memory. If metadata carries "_preset_id" as a
// uuid.UUID, that id is used (idempotent re-invocation); otherwise a
// fresh id is generated.
func (c *Client) Store(ctx context.Context, content string, embedding []float32, metadata map[string]interface{}) (uuid.UUID, error) {
	id := uuid.New()
	if presetID, ok := metadata["_preset_id"].(uuid.UUID); ok {
		id = presetID
	}
	cleanMeta := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		if k == "_preset_id" {
			continue
		}
		cleanMeta[k] = v
	}

	metadataJSON, err := json.Marshal(cleanMeta)
	if err != nil {
		return uuid.Nil, storage.NewProviderError("postgres.Store", err)
	}

	importance := 0.5
	if v, ok := metadata["importance_score"].(float64); ok {
		importance = v
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, embedding, metadata, user_id, conversation_id, importance_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata
	`, c.tableName)

	_, err = c.db.ExecContext(ctx, query,
		id,
		content,
		vectorToString(embedding),
		string(metadataJSON),
		stringOrNil(metadata["user_id"]),
		stringOrNil(metadata["conversation_id"]),
		importance,
		time.Now(),
	)
	if err != nil {
		return uuid.Nil, storage.NewProviderError("postgres.Store", err)
	}

	if hash, ok := metadata["content_hash"].(string); ok && hash != "" {
		_, _ = c.db.ExecContext(ctx, `
			INSERT INTO memory_content_hashes (memory_id, content_hash) VALUES ($1, $2)
			ON CONFLICT (memory_id) DO UPDATE SET content_hash = EXCLUDED.content_hash
		`, id, hash)
	}

	return id, nil
}

func stringOrNil(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return s
}

// Query performs pgvector similarity search, honoring the recognized
// filter keys, and best-effort bumps access_count/last_accessed for
// the returned rows.
func (c *Client) Query(ctx context.Context, queryEmbedding []float32, limit int, filters map[string]interface{}) ([]*storage.Memory, error) {
	op := distanceOperator(c.distanceMetric)
	where, args := buildWhereClause(filters, 2)
	args = append([]interface{}{vectorToString(queryEmbedding)}, args...)
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, content, metadata, user_id, conversation_id, importance_score, created_at, last_accessed, access_count,
			embedding %s $1 AS distance
		FROM %s
		%s
		ORDER BY embedding %s $1
		LIMIT $%d
	`, op, c.tableName, where, op, len(args))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		// non-fatal: callers aggregate partial results across providers
		return []*storage.Memory{}, nil
	}
	defer func() { _ = rows.Close() }()

	memories, ids, err := c.scanMemories(rows, true)
	if err != nil {
		return []*storage.Memory{}, nil
	}

	if len(ids) > 0 {
		c.bumpAccess(ctx, ids)
	}

	return memories, nil
}

func (c *Client) bumpAccess(ctx context.Context, ids []uuid.UUID) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`
		UPDATE %s SET last_accessed = NOW(), access_count = access_count + 1
		WHERE id IN (%s)
	`, c.tableName, strings.Join(placeholders, ","))
	// best-effort: never fails the read
	_, _ = c.db.ExecContext(ctx, query, args...)
}

// GetRecent implements storage.RecentAccess: the empty-query path.
// It never touches the distance operator.
func (c *Client) GetRecent(ctx context.Context, limit, offset int) ([]*storage.Memory, error) {
	query := fmt.Sprintf(`
		SELECT id, content, metadata, user_id, conversation_id, importance_score, created_at, last_accessed, access_count
		FROM %s
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, c.tableName)

	rows, err := c.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, storage.NewProviderError("postgres.GetRecent", err)
	}
	defer func() { _ = rows.Close() }()

	memories, _, err := c.scanMemories(rows, false)
	if err != nil {
		return nil, storage.NewProviderError("postgres.GetRecent", err)
	}
	return memories, nil
}

// Get retrieves a memory by id.
func (c *Client) Get(ctx context.Context, id uuid.UUID) (*storage.Memory, error) {
	query := fmt.Sprintf(`
		SELECT id, content, metadata, user_id, conversation_id, importance_score, created_at, last_accessed, access_count, embedding
		FROM %s WHERE id = $1
	`, c.tableName)

	row := c.db.QueryRowContext(ctx, query, id)

	var m storage.Memory
	var metaJSON []byte
	var userID, convID sql.NullString
	var embeddingStr string

	err := row.Scan(&m.ID, &m.Content, &metaJSON, &userID, &convID, &m.ImportanceScore, &m.CreatedAt, &m.LastAccessed, &m.AccessCount, &embeddingStr)
	if err == sql.ErrNoRows {
		return nil, storage.NewProviderError("postgres.Get", storage.ErrNotFound)
	}
	if err != nil {
		return nil, storage.NewProviderError("postgres.Get", err)
	}

	m.UserID = userID.String
	m.ConversationID = convID.String
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &m.Metadata)
	}
	m.Embedding, _ = parseVectorString(embeddingStr)

	return &m, nil
}

// Delete removes a memory by id.
func (c *Client) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", c.tableName), id)
	if err != nil {
		return false, storage.NewProviderError("postgres.Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storage.NewProviderError("postgres.Delete", err)
	}
	return n > 0, nil
}

// HealthCheck verifies the pgvector extension is present and the pool
// is reachable.
func (c *Client) HealthCheck(ctx context.Context) (storage.Health, error) {
	if err := c.db.PingContext(ctx); err != nil {
		return storage.Health{Status: storage.StatusError, Details: map[string]interface{}{"message": err.Error()}}, nil
	}

	var version string
	err := c.db.QueryRowContext(ctx, "SELECT extversion FROM pg_extension WHERE extname = 'vector'").Scan(&version)
	if err != nil {
		return storage.Health{Status: storage.StatusError, Details: map[string]interface{}{"message": "pgvector extension not found"}}, nil
	}

	return storage.Health{Status: storage.StatusHealthy, Details: map[string]interface{}{"pgvector_version": version}}, nil
}

// GetStats returns table-level statistics.
func (c *Client) GetStats(ctx context.Context) (map[string]interface{}, error) {
	var total int64
	var avgImportance sql.NullFloat64
	row := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*), AVG(importance_score) FROM %s", c.tableName))
	if err := row.Scan(&total, &avgImportance); err != nil {
		return nil, storage.NewProviderError("postgres.GetStats", err)
	}
	return map[string]interface{}{
		"provider":           "pgvector",
		"total_vectors":      total,
		"avg_importance":     avgImportance.Float64,
		"distance_metric":    string(c.distanceMetric),
		"index_type":         string(c.indexType),
		"embedding_dimensions": c.dimensions,
	}, nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// CreateIndex implements storage.IndexCreator for explicit index
// management outside of schema initialization.
func (c *Client) CreateIndex(ctx context.Context, indexType string, metric string) error {
	c.indexType = storage.IndexType(indexType)
	c.distanceMetric = storage.MetricType(metric)
	return c.createIndexes(ctx)
}

// FullTextSearch ranks memories by PostgreSQL's ts_rank_cd over a
// plainto_tsquery built from query, entirely independent of the vector
// index. Used by the emergency search paths when the index itself is
// suspect.
func (c *Client) FullTextSearch(ctx context.Context, query string, limit int) ([]*storage.Memory, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, content, metadata, user_id, conversation_id, importance_score, created_at, last_accessed, access_count,
			ts_rank_cd(to_tsvector('english', content), plainto_tsquery('english', $1)) AS rank
		FROM %s
		WHERE to_tsvector('english', content) @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC
		LIMIT $2
	`, c.tableName), query, limit)
	if err != nil {
		return nil, storage.NewProviderError("postgres.FullTextSearch", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		var m storage.Memory
		var metaJSON []byte
		var userID, convID sql.NullString
		var rank float64

		if err := rows.Scan(&m.ID, &m.Content, &metaJSON, &userID, &convID, &m.ImportanceScore, &m.CreatedAt, &m.LastAccessed, &m.AccessCount, &rank); err != nil {
			return nil, storage.NewProviderError("postgres.FullTextSearch", err)
		}
		m.UserID = userID.String
		m.ConversationID = convID.String
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &m.Metadata)
		}
		memories = append(memories, &m)
	}
	return memories, rows.Err()
}

// DB exposes the underlying *sql.DB so the Deduplication Service can
// share this provider's connection pool for its audit tables, per the
// unified store's single-pool design.
func (c *Client) DB() *sql.DB {
	return c.db
}

// TableName returns the configured memories table name.
func (c *Client) TableName() string {
	return c.tableName
}

func (c *Client) scanMemories(rows *sql.Rows, hasDistance bool) ([]*storage.Memory, []uuid.UUID, error) {
	var memories []*storage.Memory
	var ids []uuid.UUID

	for rows.Next() {
		var m storage.Memory
		var metaJSON []byte
		var userID, convID sql.NullString
		var distance float64

		var err error
		if hasDistance {
			var embeddingStr string
			err = rows.Scan(&m.ID, &m.Content, &metaJSON, &userID, &convID, &m.ImportanceScore, &m.CreatedAt, &m.LastAccessed, &m.AccessCount, &distance)
			_ = embeddingStr
		} else {
			err = rows.Scan(&m.ID, &m.Content, &metaJSON, &userID, &convID, &m.ImportanceScore, &m.CreatedAt, &m.LastAccessed, &m.AccessCount)
		}
		if err != nil {
			return nil, nil, err
		}

		m.UserID = userID.String
		m.ConversationID = convID.String
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &m.Metadata)
		}
		if hasDistance {
			sim := similarityFromDistance(c.distanceMetric, distance)
			m.SimilarityScore = &sim
		}

		memories = append(memories, &m)
		ids = append(ids, m.ID)
	}

	return memories, ids, rows.Err()
}

// buildWhereClause builds a parameterized WHERE clause from the
// recognized filter keys, starting parameter numbering at startIdx.
func buildWhereClause(filters map[string]interface{}, startIdx int) (string, []interface{}) {
	conditions := []string{"1=1"}
	var args []interface{}
	idx := startIdx

	if v, ok := filters[storage.FilterUserID]; ok {
		conditions = append(conditions, "user_id = $"+strconv.Itoa(idx))
		args = append(args, v)
		idx++
	}
	if v, ok := filters[storage.FilterConversationID]; ok {
		conditions = append(conditions, "conversation_id = $"+strconv.Itoa(idx))
		args = append(args, v)
		idx++
	}
	if v, ok := filters[storage.FilterMinImportance]; ok {
		conditions = append(conditions, "importance_score >= $"+strconv.Itoa(idx))
		args = append(args, v)
		idx++
	}
	if v, ok := filters[storage.FilterStartTime]; ok {
		conditions = append(conditions, "created_at >= $"+strconv.Itoa(idx))
		args = append(args, v)
		idx++
	}
	if v, ok := filters[storage.FilterEndTime]; ok {
		conditions = append(conditions, "created_at <= $"+strconv.Itoa(idx))
		args = append(args, v)
		idx++
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func vectorToString(vector []float32) string {
	if len(vector) == 0 {
		return "[]"
	}
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func parseVectorString(s string) ([]float32, error) {
	s = strings.Trim(s, "[]")
	if s == "" {
		return []float32{}, nil
	}
	parts := strings.Split(s, ",")
	result := make([]float32, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, err
		}
		result[i] = float32(v)
	}
	return result, nil
}
