// Package core provides the Unified Vector Store client and memory
// management functionality for the long-term memory service.
package core

import (
	"time"

	"github.com/google/uuid"

	"github.com/core-nexus/ltm-service/pkg/intelligence"
	"github.com/core-nexus/ltm-service/pkg/storage"
)

// Memory represents a single memory persisted by the Unified Store.
//
// A memory contains its content, an embedding used for similarity
// search, caller and system metadata, and the bookkeeping fields
// (access_count, last_accessed) that feed the ADM evolution hints.
type Memory struct {
	// ID is the globally unique identifier assigned at ingestion.
	// Never reused.
	ID uuid.UUID `json:"id"`

	// Content is UTF-8 text, non-empty.
	Content string `json:"content"`

	// Embedding is the vector representation used for similarity search.
	// Always has length Dimensions() of the configured embedding model
	// for memories persisted through the Unified Store.
	Embedding []float32 `json:"embedding,omitempty"`

	// Metadata holds caller-supplied keys plus system-injected fields
	// (see SystemMetadata). Always present, may be empty.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// ImportanceScore is in [0,1]; either supplied by the caller or
	// computed by the ADM Scoring Engine.
	ImportanceScore float64 `json:"importance_score"`

	// SimilarityScore is populated on query results only; absent on
	// stored memories returned from Store/GetByID.
	SimilarityScore *float64 `json:"similarity_score,omitempty"`

	// UserID and ConversationID support per-tenant and per-conversation
	// filtering; both optional.
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`

	// CreatedAt is the wall-clock instant at ingestion.
	CreatedAt time.Time `json:"created_at"`

	// LastAccessed and AccessCount are updated on retrieval; consumed
	// by the ADM evolution hints.
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
}

// SystemMetadata carries the fields the Unified Store itself injects
// into a Memory's Metadata map, kept in a typed sub-struct (under the
// reserved key "_system") so schema evolution of these fields never
// collides with caller-supplied keys.
type SystemMetadata struct {
	ContentLength  int     `json:"content_length"`
	ContentHash    string  `json:"content_hash"`
	DataQuality    float64 `json:"data_quality"`
	DataRelevance  float64 `json:"data_relevance"`
	DataIntel      float64 `json:"data_intelligence"`
	ADMScore       float64 `json:"adm_score"`
	ADMError       string  `json:"adm_error,omitempty"`
}

// SystemMetadataKey is the reserved Metadata map key under which
// SystemMetadata is stored.
const SystemMetadataKey = "_system"

// EvolutionStrategy is an advisory action suggested for a memory based
// on its ADM score and access pattern. It aliases the type defined in
// pkg/intelligence, which computes it.
type EvolutionStrategy = intelligence.EvolutionStrategy

const (
	EvolutionReinforcement   = intelligence.EvolutionReinforcement
	EvolutionDiversification = intelligence.EvolutionDiversification
	EvolutionConsolidation   = intelligence.EvolutionConsolidation
	EvolutionPruning         = intelligence.EvolutionPruning
)

// EvolutionHint is the advisory output of SuggestEvolution: a strategy
// plus the confidence behind it, discounted by how much the memory's
// retention has decayed since it was last touched.
type EvolutionHint struct {
	Strategy   EvolutionStrategy `json:"strategy"`
	Confidence float64           `json:"confidence"`
	ADMScore   float64           `json:"adm_score"`
	Retention  float64           `json:"retention"`
}

// DedupMode controls the Deduplication Service's operational mode.
type DedupMode = intelligence.DedupMode

const (
	DedupOff     = intelligence.DedupOff
	DedupLogOnly = intelligence.DedupLogOnly
	DedupActive  = intelligence.DedupActive
)

// DedupDecision is the outcome of a deduplication check.
type DedupDecision = intelligence.DedupDecision

const (
	DecisionDuplicate    = intelligence.DecisionDuplicate
	DecisionUnique       = intelligence.DecisionUnique
	DecisionReviewNeeded = intelligence.DecisionReviewNeeded
)

// DedupResult carries the full outcome of a deduplication check,
// including the audit fields persisted to the review table. It
// aliases pkg/intelligence's type; ExistingMemory there is a
// *storage.Memory rather than a *core.Memory, so callers use
// fromStorageMemory to get the Unified Store's own Memory shape.
type DedupResult = intelligence.DedupResult

// ADMResult is the triple (data_quality, data_relevance,
// data_intelligence) plus their weighted sum adm_score, all in [0,1].
type ADMResult = intelligence.ADMResult

// MetricType defines the distance metric for vector similarity. It
// aliases the type defined in pkg/storage so the postgres provider
// doesn't need to import pkg/core to reference it.
type MetricType = storage.MetricType

const (
	MetricCosine = storage.MetricCosine
	MetricL2     = storage.MetricL2
	MetricIP     = storage.MetricIP
)

// IndexType selects the pgvector index algorithm.
type IndexType = storage.IndexType

const (
	IndexTypeHNSW    = storage.IndexTypeHNSW
	IndexTypeIVFFlat = storage.IndexTypeIVFFlat
)

// ProviderStatus is the health status reported by a provider.
type ProviderStatus string

const (
	StatusHealthy  ProviderStatus = "healthy"
	StatusDegraded ProviderStatus = "degraded"
	StatusError    ProviderStatus = "error"
	StatusDisabled ProviderStatus = "disabled"
)

// ProviderHealth is the result of a provider health check.
type ProviderHealth struct {
	Status  ProviderStatus         `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// QueryRequest carries the parameters of a query_memories call.
type QueryRequest struct {
	Query          string
	Limit          int
	MinSimilarity  float64
	Filters        map[string]interface{}
	UserID         string
	ConversationID string
	Providers      []string // optional allow-list; empty = default [primary]
}

// QueryResponse carries the result of a query_memories call.
type QueryResponse struct {
	Memories      []*Memory              `json:"memories"`
	TotalFound    int                    `json:"total_found"`
	QueryTimeMS   float64                `json:"query_time_ms"`
	ProvidersUsed []string               `json:"providers_used"`
	CacheHit      bool                   `json:"cache_hit"`
	QueryMetadata map[string]interface{} `json:"query_metadata,omitempty"`
}

// Stats aggregates running counters maintained by the Unified Store.
type Stats struct {
	TotalStores      int64
	TotalQueries     int64
	ProviderUsage    map[string]int64
	AvgQueryTimeMS   float64
	ADMCalculations  int64
	AvgADMScore      float64
	CacheHits        int64
	CacheMisses      int64
}
