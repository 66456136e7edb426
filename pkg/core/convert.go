package core

import "github.com/core-nexus/ltm-service/pkg/storage"

// fromStorageMemory converts a provider-level storage.Memory into the
// Unified Store's public core.Memory, the two shapes differing only by
// package (storage cannot import core without a cycle).
func fromStorageMemory(m *storage.Memory) *Memory {
	if m == nil {
		return nil
	}
	return &Memory{
		ID:              m.ID,
		Content:         m.Content,
		Embedding:       m.Embedding,
		Metadata:        m.Metadata,
		ImportanceScore: m.ImportanceScore,
		SimilarityScore: m.SimilarityScore,
		UserID:          m.UserID,
		ConversationID:  m.ConversationID,
		CreatedAt:       m.CreatedAt,
		LastAccessed:    m.LastAccessed,
		AccessCount:     m.AccessCount,
	}
}

func fromStorageMemories(in []*storage.Memory) []*Memory {
	out := make([]*Memory, 0, len(in))
	for _, m := range in {
		out = append(out, fromStorageMemory(m))
	}
	return out
}

// toStorageMemory is the reverse of fromStorageMemory, used to hand a
// query result to the cache package, which stores results as
// storage.Memory to avoid importing pkg/core.
func toStorageMemory(m *Memory) *storage.Memory {
	if m == nil {
		return nil
	}
	return &storage.Memory{
		ID:              m.ID,
		Content:         m.Content,
		Embedding:       m.Embedding,
		Metadata:        m.Metadata,
		ImportanceScore: m.ImportanceScore,
		SimilarityScore: m.SimilarityScore,
		UserID:          m.UserID,
		ConversationID:  m.ConversationID,
		CreatedAt:       m.CreatedAt,
		LastAccessed:    m.LastAccessed,
		AccessCount:     m.AccessCount,
	}
}

func toStorageMemories(in []*Memory) []*storage.Memory {
	out := make([]*storage.Memory, 0, len(in))
	for _, m := range in {
		out = append(out, toStorageMemory(m))
	}
	return out
}

// admScoreFromMetadata recovers the ADM score injected at Store time.
// A memory fetched straight off the write path carries it as a typed
// SystemMetadata value; one round-tripped through a provider's JSON
// column carries it as a decoded map instead. fallback is returned
// when neither shape is present.
func admScoreFromMetadata(metadata map[string]interface{}, fallback float64) float64 {
	raw, ok := metadata[SystemMetadataKey]
	if !ok {
		return fallback
	}
	switch sys := raw.(type) {
	case SystemMetadata:
		return sys.ADMScore
	case map[string]interface{}:
		if v, ok := sys["adm_score"].(float64); ok {
			return v
		}
	}
	return fallback
}
