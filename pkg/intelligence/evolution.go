package intelligence

import (
	"math"
	"time"
)

// RetentionTracker computes a continuous retention-strength signal
// from a memory's access history, used to weight evolution-hint
// confidence; the ADM Scoring Engine does not read it. It does not
// replace the ADM evolution
// decision table; it refines the confidence attached to its verdict.
type RetentionTracker struct {
	// decayRate controls how quickly unretrieved memories lose
	// retention strength. Typical range: 0.05-0.2.
	decayRate float64

	// reinforcementFactor controls how much retention strengthens on
	// each access. Typical range: 0.2-0.5.
	reinforcementFactor float64
}

// NewRetentionTracker constructs a RetentionTracker. A zero decayRate
// or reinforcementFactor falls back to 0.1 and 0.3 respectively.
func NewRetentionTracker(decayRate, reinforcementFactor float64) *RetentionTracker {
	if decayRate == 0 {
		decayRate = 0.1
	}
	if reinforcementFactor == 0 {
		reinforcementFactor = 0.3
	}
	return &RetentionTracker{decayRate: decayRate, reinforcementFactor: reinforcementFactor}
}

// Retention computes the current retention strength from the time
// elapsed since lastAccessed (or createdAt if never accessed), via
// R = e^(-decayRate * hoursElapsed / 24), clamped to [0, 1].
func (t *RetentionTracker) Retention(createdAt time.Time, lastAccessed *time.Time) float64 {
	reference := createdAt
	if lastAccessed != nil {
		reference = *lastAccessed
	}
	hoursElapsed := time.Since(reference).Hours()
	retention := math.Exp(-t.decayRate * hoursElapsed / 24.0)
	return clamp01(retention)
}

// Reinforce strengthens retention on access:
// newStrength = min(1, currentStrength + reinforcementFactor*(1-currentStrength)).
func (t *RetentionTracker) Reinforce(currentStrength float64) float64 {
	return clamp01(currentStrength + t.reinforcementFactor*(1.0-currentStrength))
}

// ConfidenceAdjustment scales an evolution-hint's base confidence by
// the memory's current retention strength, so a hint about a memory
// that has already decayed carries proportionally less weight.
func (t *RetentionTracker) ConfidenceAdjustment(baseConfidence float64, createdAt time.Time, lastAccessed *time.Time) float64 {
	retention := t.Retention(createdAt, lastAccessed)
	return clamp01(baseConfidence * (0.5 + 0.5*retention))
}
