package intelligence_test

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/core-nexus/ltm-service/pkg/intelligence"
)

func defaultEngine() *intelligence.ScoringEngine {
	return intelligence.NewScoringEngine(
		intelligence.ADMWeights{DataQuality: 0.3, DataRelevance: 0.4, DataIntel: 0.3},
		intelligence.ADMThresholds{ConsolidationThreshold: 0.8, PruningThreshold: 0.2},
	)
}

func TestScoreWithinBounds(t *testing.T) {
	engine := defaultEngine()
	result := engine.Score(context.Background(), intelligence.Input{
		Content:   "I learned that the deploy pipeline must always run tests first.",
		UserID:    "u1",
		CreatedAt: time.Now(),
	})

	assert.GreaterOrEqual(t, result.ADMScore, 0.0)
	assert.LessOrEqual(t, result.ADMScore, 1.0)
	assert.GreaterOrEqual(t, result.DataQuality, 0.0)
	assert.GreaterOrEqual(t, result.DataRelevance, 0.0)
	assert.GreaterOrEqual(t, result.DataIntel, 0.0)
}

func TestScoreEmptyContentIsLowQuality(t *testing.T) {
	engine := defaultEngine()
	result := engine.Score(context.Background(), intelligence.Input{Content: ""})
	assert.Less(t, result.DataQuality, 0.3)
}

func TestScoreSingleCharacterContentIsLowValue(t *testing.T) {
	engine := defaultEngine()
	result := engine.Score(context.Background(), intelligence.Input{Content: "x"})
	assert.LessOrEqual(t, result.ADMScore, 0.35)
}

func TestScoreRichVariedContentWithMetadataIsHighValue(t *testing.T) {
	engine := defaultEngine()

	words := make([]string, 400)
	for i := range words {
		words[i] = "word" + strconv.Itoa(i)
	}
	// Sprinkle sentence boundaries roughly every 15 words.
	for i := 14; i < len(words); i += 15 {
		words[i] += "."
	}
	body := strings.Join(words, " ")
	content := fmt.Sprintf(
		"%s Project: Case123 deadline Soon for the client, because the team should plan to implement it. "+
			"We learned that this pattern should help us expect better outcomes.",
		body,
	)

	result := engine.Score(context.Background(), intelligence.Input{
		Content:        content,
		UserID:         "u1",
		ConversationID: "c1",
		CreatedAt:      time.Now(),
		Metadata: map[string]interface{}{
			"topic":     "business",
			"sentiment": "positive",
			"entities":  []string{"client"},
			"context":   "quarterly planning",
		},
	})

	assert.GreaterOrEqual(t, result.ADMScore, 0.55)
}

func TestSuggestEvolutionStrategyReinforcement(t *testing.T) {
	engine := defaultEngine()
	strategy, confidence := engine.SuggestEvolutionStrategy(0.85, 10, 5)
	assert.Equal(t, intelligence.EvolutionReinforcement, strategy)
	assert.Equal(t, 0.9, confidence)
}

func TestSuggestEvolutionStrategyPruning(t *testing.T) {
	engine := defaultEngine()
	strategy, confidence := engine.SuggestEvolutionStrategy(0.1, 0, 45)
	assert.Equal(t, intelligence.EvolutionPruning, strategy)
	assert.Equal(t, 0.8, confidence)
}

func TestSuggestEvolutionStrategyDiversification(t *testing.T) {
	engine := defaultEngine()
	strategy, _ := engine.SuggestEvolutionStrategy(0.5, 1, 10)
	assert.Equal(t, intelligence.EvolutionDiversification, strategy)
}

func TestSuggestEvolutionStrategyConsolidation(t *testing.T) {
	engine := defaultEngine()
	strategy, _ := engine.SuggestEvolutionStrategy(0.85, 1, 10)
	assert.Equal(t, intelligence.EvolutionConsolidation, strategy)
}

func TestSuggestEvolutionStrategyDefault(t *testing.T) {
	engine := defaultEngine()
	strategy, confidence := engine.SuggestEvolutionStrategy(0.35, 4, 10)
	assert.Equal(t, intelligence.EvolutionReinforcement, strategy)
	assert.Equal(t, 0.3, confidence)
}
