// Package storage defines the Vector Provider contract shared by every
// storage backend (PostgreSQL+pgvector, the embedded local fallback,
// and the optional cloud provider).
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Memory mirrors core.Memory in the storage package to avoid a
// circular dependency between storage and core.
type Memory struct {
	ID              uuid.UUID
	Content         string
	Embedding       []float32
	Metadata        map[string]interface{}
	ImportanceScore float64
	SimilarityScore *float64
	UserID          string
	ConversationID  string
	CreatedAt       time.Time
	LastAccessed    time.Time
	AccessCount     int
}

// Filters recognized by every provider's Query. Unknown keys are
// ignored, not rejected; provider-specific extensions may add more.
const (
	FilterUserID         = "user_id"
	FilterConversationID = "conversation_id"
	FilterMinImportance  = "min_importance"
	FilterStartTime      = "start_time"
	FilterEndTime        = "end_time"
)

// Health is the result of a provider health check.
type Health struct {
	Status  string
	Details map[string]interface{}
}

// Health status values.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusError    = "error"
	StatusDisabled = "disabled"
)

// VectorStore is the contract every storage backend must satisfy.
//
// Failure semantics: Store returns its error on the first failure; no
// provider retries it. Query
// returns an empty slice on non-fatal provider failure rather than an
// error, so the Unified Store can aggregate partial results across
// providers.
type VectorStore interface {
	// Store persists content+embedding+metadata and returns the
	// assigned id. If metadata carries a "_preset_id" key with a
	// uuid.UUID value, Store is idempotent on re-invocation with that
	// id; otherwise a fresh id is assigned.
	Store(ctx context.Context, content string, embedding []float32, metadata map[string]interface{}) (uuid.UUID, error)

	// Query returns up to limit memories ordered by descending
	// similarity, honoring the recognized Filter* keys.
	Query(ctx context.Context, queryEmbedding []float32, limit int, filters map[string]interface{}) ([]*Memory, error)

	// Get retrieves a single memory by id.
	Get(ctx context.Context, id uuid.UUID) (*Memory, error)

	// Delete removes a memory by id. Returns false if no row matched.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// HealthCheck reports the provider's current health.
	HealthCheck(ctx context.Context) (Health, error)

	// GetStats returns provider-specific statistics for the stats
	// external interface operation.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close releases the provider's resources.
	Close() error
}

// RecentAccess is an optional capability. The Unified Store performs
// a type assertion for this interface rather than a name-based probe
// (no hasattr-style duck typing) before taking the empty-query path.
type RecentAccess interface {
	// GetRecent bypasses similarity entirely:
	// ORDER BY created_at DESC LIMIT limit OFFSET offset. Never touches
	// the distance operator — sending a zero or near-zero vector into a
	// cosine index can produce undefined ordering (possible NaN), so
	// this path must exist independently of Query.
	GetRecent(ctx context.Context, limit, offset int) ([]*Memory, error)
}

// IndexCreator is an optional capability for providers that support
// explicit vector-index management (PgVector does; the local and
// cloud providers do not implement it).
type IndexCreator interface {
	CreateIndex(ctx context.Context, indexType string, metric string) error
}
