package intelligence

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/core-nexus/ltm-service/pkg/storage"
)

// DedupService implements the three-stage deduplication pipeline:
// exact content-hash match, semantic nearest-neighbor match, then a
// fixed business-rule adjudication between the two. It fails open —
// any internal error yields DecisionUnique rather than blocking the
// write path.
type DedupService struct {
	db                  *sql.DB
	mode                DedupMode
	similarityThreshold float64
	exactMatchOnly      bool
	logger              *zap.SugaredLogger
}

// NewDedupService constructs a DedupService sharing db (the primary
// provider's connection pool) for its audit tables.
func NewDedupService(db *sql.DB, mode DedupMode, similarityThreshold float64, exactMatchOnly bool) *DedupService {
	if similarityThreshold == 0 {
		similarityThreshold = 0.95
	}
	return &DedupService{
		db:                  db,
		mode:                mode,
		similarityThreshold: similarityThreshold,
		exactMatchOnly:      exactMatchOnly,
		logger:              zap.NewNop().Sugar(),
	}
}

// WithLogger attaches a structured logger used to report fail-open
// events (a hash lookup error that falls through to "no match").
func (d *DedupService) WithLogger(logger *zap.SugaredLogger) *DedupService {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// ContentHash computes the exact-match key for content: the content is
// lowercased and trimmed first so that two memories differing only in
// case or surrounding whitespace hash identically and collide at
// stage 1 of the pipeline.
func ContentHash(content string) string {
	normalized := strings.ToLower(strings.TrimSpace(content))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Check runs the deduplication pipeline against a candidate memory.
// neighbor is the closest existing memory by vector similarity, if
// the caller already performed that search (nil if it found none);
// Check itself compares neighborSimilarity against the threshold.
func (d *DedupService) Check(ctx context.Context, candidateID uuid.UUID, content string, importanceScore float64, userID string, neighbor *storage.Memory, neighborSimilarity *float64) DedupResult {
	if d.mode == DedupOff || d.db == nil {
		return DedupResult{Decision: DecisionUnique, Reason: "deduplication disabled"}
	}

	hash := ContentHash(content)

	exactID, err := d.checkExactMatch(ctx, hash)
	if err != nil {
		d.logger.Warnw("dedup exact-match lookup failed, falling open to unique", "error", err)
	} else if exactID != uuid.Nil {
		result := DedupResult{
			IsDuplicate:    true,
			ExistingMemory: &storage.Memory{ID: exactID},
			Decision:       DecisionDuplicate,
			Reason:         "exact content hash match",
			ContentHash:    hash,
		}
		d.record(ctx, candidateID, exactID, 1.0, true, nil, result.Decision, result.Reason)
		return result
	}

	if d.exactMatchOnly || neighbor == nil || neighborSimilarity == nil || *neighborSimilarity < d.similarityThreshold {
		return DedupResult{Decision: DecisionUnique, Reason: "no match above threshold", ContentHash: hash}
	}

	result := d.applyBusinessRules(neighbor, importanceScore, userID, *neighborSimilarity, hash)
	d.record(ctx, candidateID, neighbor.ID, *neighborSimilarity, false, neighborSimilarity, result.Decision, result.Reason)
	return result
}

// applyBusinessRules adjudicates a semantic-match candidate per the
// fixed rule order: a large importance-score gap or a different owner
// always makes the candidate unique; an aging existing memory routes
// to manual review; otherwise the candidate is a duplicate.
func (d *DedupService) applyBusinessRules(existing *storage.Memory, candidateImportance float64, candidateUserID string, similarity float64, hash string) DedupResult {
	importanceDiff := existing.ImportanceScore - candidateImportance
	if importanceDiff < 0 {
		importanceDiff = -importanceDiff
	}

	sim := similarity
	base := DedupResult{
		ExistingMemory:  existing,
		SimilarityScore: &sim,
		ContentHash:     hash,
	}

	if importanceDiff > 0.3 {
		base.Decision = DecisionUnique
		base.Reason = "importance score diverges beyond threshold"
		return base
	}

	if existing.UserID != "" && candidateUserID != "" && existing.UserID != candidateUserID {
		base.Decision = DecisionUnique
		base.Reason = "different owning user"
		return base
	}

	if time.Since(existing.CreatedAt) > 30*24*time.Hour {
		base.Decision = DecisionReviewNeeded
		base.Reason = "existing memory is older than the review window"
		base.ConfidenceScore = 0.5
		return base
	}

	base.IsDuplicate = true
	base.Decision = DecisionDuplicate
	base.Reason = "semantic match within business rules"
	base.ConfidenceScore = similarity
	return base
}

func (d *DedupService) checkExactMatch(ctx context.Context, hash string) (uuid.UUID, error) {
	var memoryID uuid.UUID
	err := d.db.QueryRowContext(ctx, `
		SELECT memory_id FROM memory_content_hashes WHERE content_hash = $1 LIMIT 1
	`, hash).Scan(&memoryID)
	if err == sql.ErrNoRows {
		return uuid.Nil, nil
	}
	return memoryID, err
}

// record persists the decision to the audit trail. In LOG_ONLY mode
// the decision is still recorded, but the caller is expected to
// ignore IsDuplicate and proceed with the write.
func (d *DedupService) record(ctx context.Context, candidateID, existingID uuid.UUID, similarity float64, hashMatch bool, vectorSim *float64, decision DedupDecision, reason string) {
	var vecSim interface{}
	if vectorSim != nil {
		vecSim = *vectorSim
	}
	_, _ = d.db.ExecContext(ctx, `
		INSERT INTO deduplication_reviews
			(candidate_id, existing_id, similarity_score, content_hash_match, vector_similarity_score, decision, decision_reason, auto_decision)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT (candidate_id, existing_id) DO UPDATE SET
			similarity_score = EXCLUDED.similarity_score,
			decision = EXCLUDED.decision,
			decision_reason = EXCLUDED.decision_reason,
			reviewed_at = NOW()
	`, candidateID, existingID, similarity, hashMatch, vecSim, string(decision), reason)
}

// MarkFalsePositive overturns an earlier DecisionDuplicate recorded
// for (candidateID, existingID), so the audit trail reflects human
// feedback without re-running the pipeline.
func (d *DedupService) MarkFalsePositive(ctx context.Context, candidateID, existingID uuid.UUID, reviewer string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE deduplication_reviews
		SET decision = $1, decision_reason = 'marked false positive', auto_decision = FALSE, reviewed_by = $2, reviewed_at = NOW()
		WHERE candidate_id = $3 AND existing_id = $4
	`, string(DecisionUnique), reviewer, candidateID, existingID)
	if err != nil {
		return storage.NewProviderError("dedup.MarkFalsePositive", err)
	}
	return nil
}

// CleanupOldHashes deletes content-hash rows older than olderThanDays,
// bounding the exact-match index's growth.
func (d *DedupService) CleanupOldHashes(ctx context.Context, olderThanDays int) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM memory_content_hashes WHERE created_at < NOW() - ($1 || ' days')::interval
	`, olderThanDays)
	if err != nil {
		return 0, storage.NewProviderError("dedup.CleanupOldHashes", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Stats reports pipeline outcome counts.
func (d *DedupService) Stats(ctx context.Context) (map[string]interface{}, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT decision, COUNT(*) FROM deduplication_reviews GROUP BY decision`)
	if err != nil {
		return nil, storage.NewProviderError("dedup.Stats", err)
	}
	defer func() { _ = rows.Close() }()

	counts := map[string]interface{}{}
	for rows.Next() {
		var decision string
		var count int64
		if err := rows.Scan(&decision, &count); err != nil {
			continue
		}
		counts[decision] = count
	}
	return counts, nil
}
