package core

import (
	"context"
	"strings"

	"github.com/core-nexus/ltm-service/pkg/storage"
	"github.com/core-nexus/ltm-service/pkg/storage/local"
	"github.com/core-nexus/ltm-service/pkg/storage/postgres"
)

// EmergencyAll returns the most recent memories with no filtering at
// all, bypassing every provider's similarity path. Invoked only on
// explicit caller request or once both the embedding model and the
// primary vector path have already failed.
func (c *Client) EmergencyAll(ctx context.Context, limit int) ([]*Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	c.mu.RLock()
	primary := c.providers[c.primaryName]
	c.mu.RUnlock()

	if recent, ok := primary.(storage.RecentAccess); ok {
		memories, err := recent.GetRecent(ctx, limit, 0)
		if err != nil {
			return nil, NewMemoryError("EmergencyAll", err)
		}
		return fromStorageMemories(memories), nil
	}
	return nil, NewMemoryError("EmergencyAll", ErrProviderDown)
}

// EmergencyText runs PostgreSQL full-text search ranked by ts_rank_cd,
// independent of the vector index entirely. Only available when the
// PostgreSQL provider is registered.
func (c *Client) EmergencyText(ctx context.Context, query string, limit int) ([]*Memory, error) {
	if query == "" {
		return nil, NewMemoryError("EmergencyText", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	c.mu.RLock()
	pg, ok := findPostgres(c.providers)
	c.mu.RUnlock()
	if !ok {
		return nil, NewMemoryError("EmergencyText", ErrProviderDown)
	}

	memories, err := pg.FullTextSearch(ctx, query, limit)
	if err != nil {
		return nil, NewMemoryError("EmergencyText", err)
	}
	return fromStorageMemories(memories), nil
}

// EmergencyFuzzy performs a case-insensitive substring scan over the
// first five query tokens against the local provider's in-memory
// store, ranked by match count. It works even when PostgreSQL itself
// is the thing that is down, since it never touches that provider.
func (c *Client) EmergencyFuzzy(ctx context.Context, query string, limit int) ([]*Memory, error) {
	if query == "" {
		return nil, NewMemoryError("EmergencyFuzzy", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) > 5 {
		tokens = tokens[:5]
	}

	c.mu.RLock()
	lc, ok := findLocal(c.providers)
	c.mu.RUnlock()
	var target storage.VectorStore
	if ok {
		target = lc
	} else {
		c.mu.RLock()
		target = c.providers[c.primaryName]
		c.mu.RUnlock()
	}

	recent, ok := target.(storage.RecentAccess)
	if !ok {
		return nil, NewMemoryError("EmergencyFuzzy", ErrProviderDown)
	}

	candidates, err := recent.GetRecent(ctx, 10000, 0)
	if err != nil {
		return nil, NewMemoryError("EmergencyFuzzy", err)
	}

	type scored struct {
		memory *storage.Memory
		hits   int
	}
	var matches []scored
	for _, m := range candidates {
		content := strings.ToLower(m.Content)
		hits := 0
		for _, t := range tokens {
			if strings.Contains(content, t) {
				hits++
			}
		}
		if hits > 0 {
			matches = append(matches, scored{memory: m, hits: hits})
		}
	}

	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j-1].hits < matches[j].hits; j-- {
			matches[j-1], matches[j] = matches[j], matches[j-1]
		}
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]*Memory, 0, len(matches))
	for _, s := range matches {
		out = append(out, fromStorageMemory(s.memory))
	}
	return out, nil
}

func findPostgres(providers map[string]storage.VectorStore) (*postgres.Client, bool) {
	for _, p := range providers {
		if pg, ok := p.(*postgres.Client); ok {
			return pg, true
		}
	}
	return nil, false
}

// findLocal locates the local fallback provider by type rather than by
// its registered name, so a deployment that configures a non-default
// Local.Name still gets a working emergency fuzzy-search path.
func findLocal(providers map[string]storage.VectorStore) (*local.Client, bool) {
	for _, p := range providers {
		if lc, ok := p.(*local.Client); ok {
			return lc, true
		}
	}
	return nil, false
}
