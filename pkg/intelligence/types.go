package intelligence

import (
	"time"

	"github.com/core-nexus/ltm-service/pkg/storage"
)

// ADMResult is the triple (data_quality, data_relevance,
// data_intelligence) plus their weighted sum adm_score, all in [0,1].
// Defined here rather than in pkg/core since pkg/core imports this
// package to wire up the Scoring Engine; pkg/core aliases this type
// to keep it part of its own public API.
type ADMResult struct {
	ADMScore        float64 `json:"adm_score"`
	DataQuality     float64 `json:"data_quality"`
	DataRelevance   float64 `json:"data_relevance"`
	DataIntel       float64 `json:"data_intelligence"`
	CalculationTime time.Duration
	Err             string `json:"error,omitempty"`
}

// EvolutionStrategy is an advisory action suggested for a memory based
// on its ADM score and access pattern.
type EvolutionStrategy string

const (
	EvolutionReinforcement   EvolutionStrategy = "reinforcement"
	EvolutionDiversification EvolutionStrategy = "diversification"
	EvolutionConsolidation   EvolutionStrategy = "consolidation"
	EvolutionPruning         EvolutionStrategy = "pruning"
)

// DedupMode controls the Deduplication Service's operational mode.
type DedupMode string

const (
	DedupOff     DedupMode = "off"
	DedupLogOnly DedupMode = "log_only"
	DedupActive  DedupMode = "active"
)

// DedupDecision is the outcome of a deduplication check.
type DedupDecision string

const (
	DecisionDuplicate    DedupDecision = "duplicate"
	DecisionUnique       DedupDecision = "unique"
	DecisionReviewNeeded DedupDecision = "review_needed"
)

// DedupResult carries the full outcome of a deduplication check,
// including the audit fields persisted to the review table.
// ExistingMemory is a *storage.Memory rather than a *core.Memory so
// this package never has to import pkg/core; the Unified Store
// converts it to its own Memory shape at the call site.
type DedupResult struct {
	IsDuplicate     bool
	ExistingMemory  *storage.Memory
	ConfidenceScore float64
	Decision        DedupDecision
	Reason          string
	ContentHash     string
	SimilarityScore *float64
}
