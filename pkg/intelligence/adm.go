// Package intelligence implements the ADM Scoring Engine, the
// Deduplication Service, and the evolution-hint advisor that together
// form the Unified Store's decision-making layer.
package intelligence

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/core-nexus/ltm-service/pkg/storage"
)

// ADMWeights combine the three sub-scores into the final adm_score.
// Must sum to 1.0; validated by core.Config.Validate.
type ADMWeights struct {
	DataQuality   float64
	DataRelevance float64
	DataIntel     float64
}

// ADMThresholds gate the evolution-hint decision table.
type ADMThresholds struct {
	ConsolidationThreshold float64
	PruningThreshold       float64
}

// ScoringEngine computes importance scores from a memory's content,
// metadata, and access history, combining three weighted sub-signals:
// data quality, data relevance, and data intelligence.
type ScoringEngine struct {
	weights    ADMWeights
	thresholds ADMThresholds
}

// NewScoringEngine constructs a ScoringEngine from the configured
// weights and thresholds.
func NewScoringEngine(weights ADMWeights, thresholds ADMThresholds) *ScoringEngine {
	return &ScoringEngine{weights: weights, thresholds: thresholds}
}

// Input carries everything the scoring engine needs to evaluate a
// single memory. RecentUserMemories, RecentConversationMemories, and
// ContextMemories are contextual look-ups the Unified Store performs
// against its providers before scoring; the engine never queries a
// store itself, to keep it free of a dependency on core.Client.
type Input struct {
	Content        string
	Metadata       map[string]interface{}
	UserID         string
	ConversationID string
	CreatedAt      time.Time
	AccessCount    int

	// RecentUserMemories holds up to 50 memories of the caller's user.
	// The Unified Store fills it with the user's nearest neighbours of
	// the candidate's embedding, in similarity order, not recency
	// order. Empty when UserID is unset or the look-up failed.
	RecentUserMemories []*storage.Memory

	// RecentConversationMemories holds up to 20 memories of the
	// caller's conversation, filled the same way (similarity order,
	// not recency order). Empty when ConversationID is unset or the
	// look-up failed.
	RecentConversationMemories []*storage.Memory

	// ContextMemories are similarity-scored neighbors supplied by the
	// caller (e.g. the nearest-neighbor lookup already performed for
	// deduplication), consumed by the semantic-relevance sub-signal.
	ContextMemories []*storage.Memory
}

// Score computes the (data_quality, data_relevance, data_intelligence,
// adm_score) tuple for in. Any panic from a sub-signal (unexpected
// input shape, etc.) is recovered into a neutral 0.5 triple with the
// Err field set, rather than propagating to the caller.
func (e *ScoringEngine) Score(ctx context.Context, in Input) (result ADMResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = ADMResult{
				ADMScore:        0.5,
				DataQuality:     0.5,
				DataRelevance:   0.5,
				DataIntel:       0.5,
				CalculationTime: time.Since(start),
				Err:             fmtRecovered(r),
			}
		}
	}()

	dq := dataQuality(in)
	dr := dataRelevance(in)
	di := dataIntelligence(in)

	admScore := e.weights.DataQuality*dq + e.weights.DataRelevance*dr + e.weights.DataIntel*di

	return ADMResult{
		ADMScore:        clamp01(admScore),
		DataQuality:     dq,
		DataRelevance:   dr,
		DataIntel:       di,
		CalculationTime: time.Since(start),
	}
}

func fmtRecovered(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", r)
}

// SuggestEvolutionStrategy maps a memory's current adm_score and
// access pattern to an advisory action and confidence, per the fixed
// decision table: high score with repeated access reinforces; a
// stale, never-accessed, low-scoring memory is a pruning candidate;
// a moderately-scored, rarely-accessed memory benefits from
// diversification; a consistently high scorer consolidates; anything
// else defaults to a low-confidence reinforcement.
func (e *ScoringEngine) SuggestEvolutionStrategy(admScore float64, accessCount int, ageDays float64) (EvolutionStrategy, float64) {
	switch {
	case admScore >= 0.8 && accessCount > 5:
		return EvolutionReinforcement, 0.9
	case admScore < e.thresholds.PruningThreshold && accessCount == 0 && ageDays > 30:
		return EvolutionPruning, 0.8
	case admScore >= 0.4 && admScore <= 0.7 && accessCount < 3:
		return EvolutionDiversification, 0.6
	case admScore >= e.thresholds.ConsolidationThreshold:
		return EvolutionConsolidation, 0.7
	default:
		return EvolutionReinforcement, 0.3
	}
}

// dataQuality blends content, metadata, temporal, and structural
// quality signals.
func dataQuality(in Input) float64 {
	contentQuality := contentQualityScore(in.Content)
	metadataQuality := metadataQualityScore(in)
	temporalQuality := temporalQualityScore(in.CreatedAt)
	structuralQuality := structuralQualityScore(in.Content)

	return clamp01(contentQuality*0.4 + metadataQuality*0.2 + temporalQuality*0.2 + structuralQuality*0.2)
}

// dataRelevance blends user, context, semantic, and topic relevance
// signals, the first three requiring contextual look-ups the Unified
// Store performed before calling Score.
func dataRelevance(in Input) float64 {
	userRelevance := userPatternRelevance(in)
	contextRelevance := conversationCoherence(in)
	semantic := semanticRelevanceScore(in)
	topic := topicRelevanceScore(in.Content)

	return clamp01(userRelevance*0.3 + contextRelevance*0.3 + semantic*0.25 + topic*0.15)
}

// dataIntelligence blends knowledge, actionability, learning, and
// predictive-value signals.
func dataIntelligence(in Input) float64 {
	knowledge := knowledgeDensityScore(in.Content)
	actionability := actionabilityScore(in.Content)
	learning := learningPotentialScore(in.Content)
	prediction := predictionValueScore(in.Content)

	return clamp01(knowledge*0.3 + actionability*0.25 + learning*0.25 + prediction*0.2)
}

// contentQualityScore blends a length factor capped at 500 characters,
// sentence-length complexity targeting ~15 words/sentence, and the
// unique-word ratio.
func contentQualityScore(content string) float64 {
	if len(strings.TrimSpace(content)) < 10 {
		return 0.1
	}

	lengthScore := math.Min(1.0, float64(len(content))/500.0)

	words := strings.Fields(content)
	wordCount := len(words)
	sentenceCount := strings.Count(content, ".") + strings.Count(content, "!") + strings.Count(content, "?")

	var complexityScore float64
	if sentenceCount == 0 {
		complexityScore = 0.3
	} else {
		avgSentenceLength := float64(wordCount) / float64(sentenceCount)
		complexityScore = math.Min(1.0, avgSentenceLength/15.0)
	}

	var densityScore float64
	if wordCount > 0 {
		unique := make(map[string]struct{}, wordCount)
		for _, w := range words {
			unique[strings.ToLower(w)] = struct{}{}
		}
		densityScore = math.Min(1.0, float64(len(unique))/float64(wordCount))
	}

	return lengthScore*0.4 + complexityScore*0.3 + densityScore*0.3
}

// metadataQualityScore checks for the essential fields {user_id,
// conversation_id, created_at} (weighted 0.7) and the richer optional
// fields {importance_score, topic, sentiment, entities, context}
// (weighted 0.3). The essential fields are read off Input's typed
// fields rather than the metadata map, since the Unified Store keeps
// them as distinct arguments rather than loose map entries.
func metadataQualityScore(in Input) float64 {
	essentialHits := 0
	if in.UserID != "" {
		essentialHits++
	}
	if in.ConversationID != "" {
		essentialHits++
	}
	if !in.CreatedAt.IsZero() {
		essentialHits++
	}

	if len(in.Metadata) == 0 && essentialHits == 0 {
		return 0.3
	}

	essentialScore := float64(essentialHits) / 3.0

	richFields := []string{"importance_score", "topic", "sentiment", "entities", "context"}
	richHits := 0
	for _, f := range richFields {
		if _, ok := in.Metadata[f]; ok {
			richHits++
		}
	}
	richScore := float64(richHits) / float64(len(richFields))

	return essentialScore*0.7 + richScore*0.3
}

// temporalQualityScore applies exponential decay with a 30-day
// half-life from createdAt, floored at 0.1.
func temporalQualityScore(createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 0.5
	}
	ageDays := time.Since(createdAt).Hours() / 24
	freshness := math.Pow(0.5, ageDays/30.0)
	if freshness < 0.1 {
		return 0.1
	}
	if freshness > 1.0 {
		return 1.0
	}
	return freshness
}

// structuralQualityScore averages five structural indicators:
// multi-line, key/value markers, digits, capitals, and a minimum word
// count.
func structuralQualityScore(content string) float64 {
	indicators := []bool{
		strings.Contains(content, "\n"),
		strings.Contains(content, ":") || strings.Contains(content, "="),
		containsRune(content, unicode.IsDigit),
		containsRune(content, unicode.IsUpper),
		len(strings.Fields(content)) > 5,
	}
	hits := 0
	for _, v := range indicators {
		if v {
			hits++
		}
	}
	return float64(hits) / float64(len(indicators))
}

func containsRune(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if pred(r) {
			return true
		}
	}
	return false
}

// userPatternRelevance scores topic alignment against the user's
// recent memories plus a small activity bonus capped at 0.2.
func userPatternRelevance(in Input) float64 {
	if in.UserID == "" {
		return 0.5
	}
	if len(in.RecentUserMemories) == 0 {
		return 0.3
	}

	currentTopic := metadataTopic(in.Metadata)
	topicTotals := make(map[string]float64, len(in.RecentUserMemories))
	totalImportance := 0.0
	for _, m := range in.RecentUserMemories {
		topic := metadataTopic(m.Metadata)
		importance := m.ImportanceScore
		if importance == 0 {
			importance = 0.5
		}
		topicTotals[topic] += importance
		totalImportance += importance
	}

	topicScore := topicTotals[currentTopic] / math.Max(1.0, totalImportance)
	activityBonus := math.Min(0.2, float64(len(in.RecentUserMemories))/100.0)
	return math.Min(1.0, topicScore+activityBonus)
}

// conversationCoherence averages the importance of the first 10
// supplied conversation memories weighted 0.7, plus a length factor
// over all supplied conversation memories weighted 0.3.
func conversationCoherence(in Input) float64 {
	if in.ConversationID == "" {
		return 0.5
	}
	n := len(in.RecentConversationMemories)
	if n == 0 {
		return 0.4
	}

	recentN := n
	if recentN > 10 {
		recentN = 10
	}
	total := 0.0
	for _, m := range in.RecentConversationMemories[:recentN] {
		importance := m.ImportanceScore
		if importance == 0 {
			importance = 0.5
		}
		total += importance
	}
	avgImportance := total / float64(recentN)
	lengthFactor := math.Min(1.0, float64(n)/20.0)
	return avgImportance*0.7 + lengthFactor*0.3
}

// semanticRelevanceScore averages similarity against up to 10 context
// memories, with a novelty bonus when the mean lies in [0.3, 0.8] —
// similar enough to be relevant, dissimilar enough to be new.
func semanticRelevanceScore(in Input) float64 {
	n := len(in.ContextMemories)
	if n == 0 {
		return 0.5
	}
	if n > 10 {
		n = 10
	}

	total := 0.0
	for _, m := range in.ContextMemories[:n] {
		sim := 0.5
		if m.SimilarityScore != nil {
			sim = *m.SimilarityScore
		}
		total += sim
	}
	avg := total / float64(n)

	novelty := 0.0
	if avg >= 0.3 && avg <= 0.8 {
		novelty = 0.2
	}
	return math.Min(1.0, avg+novelty)
}

// topicRelevanceScore scores keyword hits against three built-in
// topic buckets, normalized by the strongest bucket's hit count.
func topicRelevanceScore(content string) float64 {
	technical := []string{"api", "code", "function", "database", "algorithm", "system"}
	personal := []string{"feel", "think", "like", "prefer", "want", "need"}
	business := []string{"project", "meeting", "deadline", "client", "revenue", "strategy"}

	lower := strings.ToLower(content)
	maxHits := 0
	for _, bucket := range [][]string{technical, personal, business} {
		hits := 0
		for _, kw := range bucket {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > maxHits {
			maxHits = hits
		}
	}
	return math.Min(1.0, float64(maxHits)/3.0)
}

func metadataTopic(metadata map[string]interface{}) string {
	if v, ok := metadata["topic"].(string); ok && v != "" {
		return v
	}
	return "general"
}

// knowledgeDensityScore scores named-entity-like surface features
// (capitalized words, mentions, URLs, currency, numbers) per word,
// scaled by 5 and clamped.
func knowledgeDensityScore(content string) float64 {
	words := strings.Fields(content)
	if len(words) == 0 {
		return 0.0
	}

	capitalized := 0
	numeric := 0
	for _, w := range words {
		r := []rune(w)
		if len(r) > 0 && unicode.IsUpper(r[0]) {
			capitalized++
		}
		if isAllDigits(w) {
			numeric++
		}
	}
	mentions := strings.Count(content, "@")
	urls := strings.Count(content, "http")
	currency := strings.Count(content, "$")

	total := capitalized + mentions + urls + currency + numeric
	density := float64(total) / float64(len(words))
	return math.Min(1.0, density*5.0)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// actionabilityScore counts modal/imperative keywords, normalized by
// 10, plus a 0.2 bonus for temporal-context words.
func actionabilityScore(content string) float64 {
	indicators := []string{
		"should", "must", "need", "will", "plan", "decide", "action",
		"implement", "execute", "schedule", "deadline", "priority",
	}
	lower := strings.ToLower(content)
	count := 0
	for _, ind := range indicators {
		if strings.Contains(lower, ind) {
			count++
		}
	}

	temporalBoost := 0.0
	for _, w := range []string{"today", "tomorrow", "next", "soon"} {
		if strings.Contains(lower, w) {
			temporalBoost = 0.2
			break
		}
	}
	return math.Min(1.0, float64(count)/10.0+temporalBoost)
}

// learningPotentialScore counts reflection keywords, normalized by 8,
// plus a 0.1 complexity bonus for content over 200 characters.
func learningPotentialScore(content string) float64 {
	indicators := []string{
		"learn", "understand", "pattern", "trend", "insight", "analysis",
		"conclusion", "result", "outcome", "lesson", "experience",
	}
	lower := strings.ToLower(content)
	count := 0
	for _, ind := range indicators {
		if strings.Contains(lower, ind) {
			count++
		}
	}

	complexityBonus := 0.0
	if len(content) > 200 {
		complexityBonus = 0.1
	}
	return math.Min(1.0, float64(count)/8.0+complexityBonus)
}

// predictionValueScore counts forecast keywords, normalized by 8.
func predictionValueScore(content string) float64 {
	indicators := []string{
		"predict", "forecast", "trend", "pattern", "behavior", "likely",
		"probability", "expect", "anticipate", "future",
	}
	lower := strings.ToLower(content)
	count := 0
	for _, ind := range indicators {
		if strings.Contains(lower, ind) {
			count++
		}
	}
	return math.Min(1.0, float64(count)/8.0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
