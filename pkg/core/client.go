package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/core-nexus/ltm-service/pkg/cache"
	"github.com/core-nexus/ltm-service/pkg/embedder"
	"github.com/core-nexus/ltm-service/pkg/embedder/mock"
	"github.com/core-nexus/ltm-service/pkg/embedder/openai"
	"github.com/core-nexus/ltm-service/pkg/intelligence"
	"github.com/core-nexus/ltm-service/pkg/resilience"
	"github.com/core-nexus/ltm-service/pkg/storage"
	"github.com/core-nexus/ltm-service/pkg/storage/cloud"
	"github.com/core-nexus/ltm-service/pkg/storage/local"
	"github.com/core-nexus/ltm-service/pkg/storage/postgres"
)

const replicationWorkers = 4

// Client is the Unified Store: the single entry point that fans
// writes out across every enabled provider and fans reads in from
// whichever providers a query targets, layering the ADM Scoring
// Engine, the Deduplication Service, and the query cache on top.
type Client struct {
	config *Config
	logger *zap.SugaredLogger

	mu            sync.RWMutex
	providers     map[string]storage.VectorStore
	primaryName   string
	providerOrder []string

	embedder         embedder.Provider
	scoringEngine    *intelligence.ScoringEngine
	dedupService     *intelligence.DedupService
	retentionTracker *intelligence.RetentionTracker
	cache            cache.Cache
	breakers         map[string]*resilience.Breaker

	replicationQueue chan replicationJob
	workerWG         sync.WaitGroup
	closeOnce        sync.Once

	statsMu sync.Mutex
	stats   Stats
}

type replicationJob struct {
	provider        string
	content         string
	embedding       []float32
	metadata        map[string]interface{}
}

// NewClient wires up every configured provider, the ADM Scoring
// Engine, the Deduplication Service, the query cache, and a bounded
// replication worker pool, and returns the ready Unified Store.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, NewMemoryError("NewClient", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg.LogLevel)

	providers, primaryName, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	emb, err := initEmbedder(cfg.Embedder, logger)
	if err != nil {
		return nil, err
	}

	weights := intelligence.ADMWeights{
		DataQuality:   cfg.ADM.WeightQuality,
		DataRelevance: cfg.ADM.WeightRelevance,
		DataIntel:     cfg.ADM.WeightIntel,
	}
	thresholds := intelligence.ADMThresholds{
		ConsolidationThreshold: cfg.ADM.ConsolidationThreshold,
		PruningThreshold:       cfg.ADM.PruningThreshold,
	}
	scoringEngine := intelligence.NewScoringEngine(weights, thresholds)
	retentionTracker := intelligence.NewRetentionTracker(0, 0)

	var dedupService *intelligence.DedupService
	if pg, ok := providers[cfg.Postgres.Name].(*postgres.Client); ok {
		dedupService = intelligence.NewDedupService(pg.DB(), DedupMode(cfg.Dedup.Mode), cfg.Dedup.SimilarityThreshold, cfg.Dedup.ExactMatchOnly).WithLogger(logger)
	}

	resultCache, err := initCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	breakers := make(map[string]*resilience.Breaker)
	order := make([]string, 0, len(providers))
	for name := range providers {
		order = append(order, name)
		breakers[name] = resilience.NewBreaker(resilience.Config{
			Name:         name,
			MaxFailures:  cfg.Resilience.BreakerMaxFailures,
			ResetTimeout: time.Duration(cfg.Resilience.BreakerResetSeconds) * time.Second,
		})
	}
	sort.Strings(order)

	c := &Client{
		config:           cfg,
		logger:           logger,
		providers:        providers,
		primaryName:      primaryName,
		providerOrder:    order,
		embedder:         emb,
		scoringEngine:    scoringEngine,
		dedupService:     dedupService,
		retentionTracker: retentionTracker,
		cache:            resultCache,
		breakers:         breakers,
		replicationQueue: make(chan replicationJob, 256),
		stats:            Stats{ProviderUsage: make(map[string]int64)},
	}

	for i := 0; i < replicationWorkers; i++ {
		c.workerWG.Add(1)
		go c.replicationWorker()
	}

	return c, nil
}

// initStorage constructs every enabled provider from cfg and decides
// the primary. A declared-primary provider that fails to initialize
// does not abort startup: initStorage falls through to the next
// enabled provider and returns its name as the actual primary, so the
// caller never has to mutate ProviderConfig to reflect degraded
// startup.
func initStorage(cfg *Config, logger *zap.SugaredLogger) (map[string]storage.VectorStore, string, error) {
	providers := make(map[string]storage.VectorStore)
	var primaryCandidates []string

	if cfg.Postgres.Enabled {
		pgCfg := &postgres.Config{
			Host:           getStr(cfg.Postgres.Config, "host", "localhost"),
			Port:           getInt(cfg.Postgres.Config, "port", 5432),
			User:           getStr(cfg.Postgres.Config, "user", "postgres"),
			Password:       getStr(cfg.Postgres.Config, "password", ""),
			DBName:         getStr(cfg.Postgres.Config, "db_name", "ltm"),
			TableName:      getStr(cfg.Postgres.Config, "table_name", "vector_memories"),
			Dimensions:     cfg.Embedder.Dimensions,
			SSLMode:        getStr(cfg.Postgres.Config, "ssl_mode", "disable"),
			DistanceMetric: MetricType(getStr(cfg.Postgres.Config, "distance_metric", "cosine")),
			IndexType:      IndexType(getStr(cfg.Postgres.Config, "index_type", "hnsw")),
			Logger:         logger,
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeoutOrDefault(cfg.Postgres.TimeoutSeconds))
		client, err := postgres.NewClient(ctx, pgCfg)
		cancel()
		if err != nil {
			logger.Warnw("provider degraded at startup", "provider", "pgvector", "error", err)
		} else {
			name := providerName(cfg.Postgres.Name, "pgvector")
			providers[name] = client
			if cfg.Postgres.Primary {
				primaryCandidates = append([]string{name}, primaryCandidates...)
			} else {
				primaryCandidates = append(primaryCandidates, name)
			}
		}
	}

	if cfg.Local.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), timeoutOrDefault(cfg.Local.TimeoutSeconds))
		client, err := local.NewClient(ctx, &local.Config{
			DBPath:     getStr(cfg.Local.Config, "db_path", "./ltm_local.db"),
			TableName:  "local_memories",
			Dimensions: cfg.Embedder.Dimensions,
			Logger:     logger,
		})
		cancel()
		if err != nil {
			logger.Warnw("provider degraded at startup", "provider", "local", "error", err)
		} else {
			name := providerName(cfg.Local.Name, "local")
			providers[name] = client
			if cfg.Local.Primary {
				primaryCandidates = append([]string{name}, primaryCandidates...)
			} else {
				primaryCandidates = append(primaryCandidates, name)
			}
		}
	}

	if cfg.Cloud.Enabled {
		client, err := cloud.NewClient(&cloud.Config{
			Endpoint:   getStr(cfg.Cloud.Config, "endpoint", ""),
			APIKey:     getStr(cfg.Cloud.Config, "token", ""),
			Collection: "ltm_memories",
			Timeout:    timeoutOrDefault(cfg.Cloud.TimeoutSeconds),
			Logger:     logger,
		})
		if err != nil {
			logger.Warnw("provider degraded at startup", "provider", "cloud", "error", err)
		} else {
			name := providerName(cfg.Cloud.Name, "cloud")
			providers[name] = client
			primaryCandidates = append(primaryCandidates, name)
		}
	}

	if len(providers) == 0 {
		return nil, "", NewMemoryError("initStorage", ErrProviderDown)
	}
	return providers, primaryCandidates[0], nil
}

func initEmbedder(cfg EmbedderConfig, logger *zap.SugaredLogger) (embedder.Provider, error) {
	switch cfg.Provider {
	case "mock", "":
		return mock.NewClient(cfg.Dimensions), nil
	case "openai":
		client, err := openai.NewClient(&openai.Config{
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			BaseURL:      cfg.BaseURL,
			Dimensions:   cfg.Dimensions,
			MaxBatchSize: cfg.MaxBatchSize,
			Logger:       logger,
		})
		if err != nil {
			return nil, NewMemoryError("initEmbedder", err)
		}
		return client, nil
	default:
		return nil, NewMemoryError("initEmbedder", ErrInvalidConfig)
	}
}

func initCache(cfg CacheConfig) (cache.Cache, error) {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if cfg.Backend == "redis" {
		return cache.NewRedisCache(cfg.RedisAddr, ttl), nil
	}
	c, err := cache.NewLocalCache(cfg.MaxEntries, ttl)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Store embeds content, scores it with the ADM Scoring Engine, checks
// it against the Deduplication Service, writes it to the primary
// provider synchronously, and queues replication to every other
// enabled provider.
func (c *Client) Store(ctx context.Context, content string, opts ...StoreOption) (*Memory, error) {
	if content == "" {
		return nil, NewMemoryError("Store", ErrInvalidInput)
	}
	options := applyStoreOptions(opts)

	vec64, err := c.embedder.Embed(ctx, content)
	if err != nil {
		c.logger.Errorw("embedding failed", "op", "Store", "error", err)
		return nil, NewMemoryError("Store", err)
	}
	embedding := toFloat32(vec64)

	c.mu.RLock()
	primary := c.providers[c.primaryName]
	c.mu.RUnlock()

	var neighbor *storage.Memory
	var neighborSim *float64
	var contextMemories []*storage.Memory
	if matches, err := c.primaryQuery(ctx, primary, embedding, 1, map[string]interface{}{}); err == nil && len(matches) > 0 {
		neighbor = matches[0]
		neighborSim = matches[0].SimilarityScore
		contextMemories = matches
	}

	var recentUserMemories []*storage.Memory
	if options.UserID != "" {
		if matches, err := c.primaryQuery(ctx, primary, embedding, 50, map[string]interface{}{
			storage.FilterUserID: options.UserID,
		}); err == nil {
			recentUserMemories = matches
		}
	}

	var recentConversationMemories []*storage.Memory
	if options.ConversationID != "" {
		if matches, err := c.primaryQuery(ctx, primary, embedding, 20, map[string]interface{}{
			storage.FilterConversationID: options.ConversationID,
		}); err == nil {
			recentConversationMemories = matches
		}
	}

	now := time.Now()
	admResult := c.scoringEngine.Score(ctx, intelligence.Input{
		Content:                    content,
		Metadata:                   options.Metadata,
		UserID:                     options.UserID,
		ConversationID:             options.ConversationID,
		CreatedAt:                  now,
		RecentUserMemories:         recentUserMemories,
		RecentConversationMemories: recentConversationMemories,
		ContextMemories:            contextMemories,
	})
	if admResult.Err != "" {
		c.logger.Warnw("ADM scoring fell back to neutral", "error", admResult.Err)
	}
	importance := admResult.ADMScore
	if options.ImportanceScore != nil {
		importance = *options.ImportanceScore
	}

	// ContentHash normalizes (lowercases, trims) before hashing so stage 1
	// of dedup catches case/whitespace-only variants; the embedding above
	// is computed from the raw content since casing and punctuation can
	// carry semantic weight for similarity search.
	contentHash := intelligence.ContentHash(content)

	if !options.SkipDedup && c.dedupService != nil && DedupMode(c.config.Dedup.Mode) != DedupOff {
		candidateID := uuid.New()
		result := c.dedupService.Check(ctx, candidateID, content, importance, options.UserID, neighbor, neighborSim)
		if result.IsDuplicate && DedupMode(c.config.Dedup.Mode) == DedupActive {
			return fromStorageMemory(result.ExistingMemory), nil
		}
	}

	metadata := make(map[string]interface{}, len(options.Metadata)+2)
	for k, v := range options.Metadata {
		metadata[k] = v
	}
	metadata[storage.FilterUserID] = options.UserID
	metadata[storage.FilterConversationID] = options.ConversationID
	metadata["importance_score"] = importance
	metadata["content_hash"] = contentHash
	metadata[SystemMetadataKey] = SystemMetadata{
		ContentLength: len(content),
		ContentHash:   contentHash,
		DataQuality:   admResult.DataQuality,
		DataRelevance: admResult.DataRelevance,
		DataIntel:     admResult.DataIntel,
		ADMScore:      admResult.ADMScore,
	}

	id, err := c.primaryStore(ctx, primary, content, embedding, metadata)
	if err != nil {
		c.logger.Errorw("primary provider store failed", "provider", c.primaryName, "error", err)
		return nil, NewMemoryError("Store", err)
	}

	c.recordStore(c.primaryName)

	targets := options.Providers
	if len(targets) == 0 {
		targets = c.providerOrder
	}
	presetMeta := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		presetMeta[k] = v
	}
	presetMeta["_preset_id"] = id
	for _, name := range targets {
		if name == c.primaryName {
			continue
		}
		select {
		case c.replicationQueue <- replicationJob{provider: name, content: content, embedding: embedding, metadata: presetMeta}:
		default:
			// queue saturated: drop replication rather than block the
			// write path; the memory is already durable on the primary.
		}
	}

	return &Memory{
		ID:              id,
		Content:         content,
		Embedding:       embedding,
		Metadata:        metadata,
		ImportanceScore: importance,
		UserID:          options.UserID,
		ConversationID:  options.ConversationID,
		CreatedAt:       now,
	}, nil
}

func (c *Client) replicationWorker() {
	defer c.workerWG.Done()
	for job := range c.replicationQueue {
		c.mu.RLock()
		provider, ok := c.providers[job.provider]
		breaker := c.breakers[job.provider]
		c.mu.RUnlock()
		if !ok {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if breaker != nil {
			_, _ = breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
				_, err := provider.Store(ctx, job.content, job.embedding, job.metadata)
				return nil, err
			})
		} else {
			_, _ = provider.Store(ctx, job.content, job.embedding, job.metadata)
		}
		cancel()
		c.recordStore(job.provider)
	}
}

// Query answers a query_memories call: the empty-query path bypasses
// similarity via each target's RecentAccess capability; otherwise the
// query is embedded and fanned out to every target provider, ranked
// by a blend of similarity and importance, and cached.
func (c *Client) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if req.Limit <= 0 {
		req.Limit = 10
	}

	cacheKey := &cache.QueryRequest{
		Query:          req.Query,
		Limit:          req.Limit,
		MinSimilarity:  req.MinSimilarity,
		Filters:        req.Filters,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	}
	key := cache.Key(cacheKey)
	if cached, ok := c.cache.Get(key); ok {
		hit := &QueryResponse{
			Memories:      fromStorageMemories(cached.Memories),
			TotalFound:    cached.TotalFound,
			QueryTimeMS:   cached.QueryTimeMS,
			ProvidersUsed: cached.ProvidersUsed,
			CacheHit:      true,
			QueryMetadata: cached.QueryMetadata,
		}
		c.recordQuery(0, true)
		c.logger.Debugw("query cache hit", "providers", req.Providers)
		return hit, nil
	}

	start := time.Now()
	targets := req.Providers
	if len(targets) == 0 {
		targets = []string{c.primaryName}
	}

	type partial struct {
		provider string
		memories []*storage.Memory
	}
	results := make([]partial, len(targets))
	var wg sync.WaitGroup

	if req.Query == "" {
		for i, name := range targets {
			wg.Add(1)
			go func(i int, name string) {
				defer wg.Done()
				c.mu.RLock()
				provider := c.providers[name]
				c.mu.RUnlock()
				if provider == nil {
					return
				}
				recent, ok := provider.(storage.RecentAccess)
				if ok {
					memories, err := recent.GetRecent(ctx, req.Limit, 0)
					if err == nil {
						results[i] = partial{provider: name, memories: memories}
						c.logger.Debugw("recent-access query", "provider", name, "count", len(memories))
						return
					}
					c.logger.Warnw("get_recent failed, falling back to vector probe", "provider", name, "error", err)
				} else {
					c.logger.Debugw("provider has no recent-access support, falling back to vector probe", "provider", name)
				}
				if memories, fallbackProvider, ok := c.queryFallback(ctx, name, req.Limit); ok {
					results[i] = partial{provider: fallbackProvider, memories: memories}
				}
			}(i, name)
		}
		wg.Wait()
	} else {
		vec64, err := c.embedder.Embed(ctx, req.Query)
		if err != nil {
			c.logger.Errorw("embedding failed", "op", "Query", "error", err)
			return nil, NewMemoryError("Query", err)
		}
		embedding := toFloat32(vec64)

		filters := make(map[string]interface{}, len(req.Filters)+2)
		for k, v := range req.Filters {
			filters[k] = v
		}
		if req.UserID != "" {
			filters[storage.FilterUserID] = req.UserID
		}
		if req.ConversationID != "" {
			filters[storage.FilterConversationID] = req.ConversationID
		}

		for i, name := range targets {
			wg.Add(1)
			go func(i int, name string) {
				defer wg.Done()
				c.mu.RLock()
				provider := c.providers[name]
				breaker := c.breakers[name]
				c.mu.RUnlock()
				if provider == nil {
					return
				}
				qStart := time.Now()
				var memories []*storage.Memory
				var err error
				if breaker != nil {
					var out interface{}
					out, err = breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
						return provider.Query(ctx, embedding, req.Limit*2, filters)
					})
					if err == nil {
						memories, _ = out.([]*storage.Memory)
					}
				} else {
					memories, err = provider.Query(ctx, embedding, req.Limit*2, filters)
				}
				c.logger.Debugw("provider query", "provider", name, "duration_ms", time.Since(qStart).Milliseconds(), "error", err)
				if err == nil {
					results[i] = partial{provider: name, memories: memories}
				} else if name == c.primaryName {
					c.logger.Errorw("primary provider query failed", "provider", name, "error", err)
				}
			}(i, name)
		}
		wg.Wait()
	}

	var combined []*Memory
	seen := make(map[uuid.UUID]bool)
	providersUsed := make([]string, 0, len(targets))
	for _, r := range results {
		if len(r.memories) == 0 {
			continue
		}
		providersUsed = append(providersUsed, r.provider)
		for _, m := range r.memories {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			if req.MinSimilarity > 0 && m.SimilarityScore != nil && *m.SimilarityScore < req.MinSimilarity {
				continue
			}
			combined = append(combined, fromStorageMemory(m))
		}
	}

	sort.SliceStable(combined, func(i, j int) bool {
		return rankScore(combined[i]) > rankScore(combined[j])
	})
	if len(combined) > req.Limit {
		combined = combined[:req.Limit]
	}

	elapsed := time.Since(start)
	resp := &QueryResponse{
		Memories:      combined,
		TotalFound:    len(combined),
		QueryTimeMS:   float64(elapsed.Microseconds()) / 1000.0,
		ProvidersUsed: providersUsed,
		CacheHit:      false,
	}
	c.logger.Debugw("query cache miss", "providers", providersUsed, "results", len(combined), "duration_ms", elapsed.Milliseconds())
	c.cache.Set(key, &cache.QueryResponse{
		Memories:      toStorageMemories(resp.Memories),
		TotalFound:    resp.TotalFound,
		QueryTimeMS:   resp.QueryTimeMS,
		ProvidersUsed: resp.ProvidersUsed,
		CacheHit:      resp.CacheHit,
		QueryMetadata: resp.QueryMetadata,
	})
	c.recordQuery(elapsed, false)

	return resp, nil
}

// primaryQuery runs a Query against the primary provider through its
// circuit breaker, the same way every other provider's calls are
// protected, so a flaky primary degrades instead of hanging Store.
func (c *Client) primaryQuery(ctx context.Context, primary storage.VectorStore, embedding []float32, limit int, filters map[string]interface{}) ([]*storage.Memory, error) {
	breaker := c.breakers[c.primaryName]
	if breaker == nil {
		return primary.Query(ctx, embedding, limit, filters)
	}
	out, err := breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return primary.Query(ctx, embedding, limit, filters)
	})
	if err != nil {
		return nil, err
	}
	memories, _ := out.([]*storage.Memory)
	return memories, nil
}

// primaryStore runs a Store against the primary provider through its
// circuit breaker.
func (c *Client) primaryStore(ctx context.Context, primary storage.VectorStore, content string, embedding []float32, metadata map[string]interface{}) (uuid.UUID, error) {
	breaker := c.breakers[c.primaryName]
	if breaker == nil {
		return primary.Store(ctx, content, embedding, metadata)
	}
	out, err := breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return primary.Store(ctx, content, embedding, metadata)
	})
	if err != nil {
		return uuid.Nil, err
	}
	id, _ := out.(uuid.UUID)
	return id, nil
}

// queryFallback answers the empty-query path for a target that has no
// working RecentAccess support by probing another enabled provider
// with a small-magnitude, non-zero vector instead of leaving the
// target's results empty.
func (c *Client) queryFallback(ctx context.Context, exclude string, limit int) ([]*storage.Memory, string, bool) {
	c.mu.RLock()
	order := append([]string{}, c.providerOrder...)
	providers := c.providers
	dims := c.config.Embedder.Dimensions
	c.mu.RUnlock()

	probe := smallMagnitudeVector(dims)
	for _, name := range order {
		if name == exclude {
			continue
		}
		provider, ok := providers[name]
		if !ok {
			continue
		}
		memories, err := provider.Query(ctx, probe, limit, map[string]interface{}{})
		if err == nil {
			return memories, name, true
		}
	}
	return nil, "", false
}

// smallMagnitudeVector returns a non-zero probe vector for the
// empty-query fallback path. A zero vector is undefined under cosine
// distance and would produce meaningless ordering.
func smallMagnitudeVector(dims int) []float32 {
	if dims <= 0 {
		dims = 1536
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = 1e-4
	}
	return vec
}

// rankScore blends similarity and stored importance into a single
// ordering key: 70% similarity, 30% importance.
func rankScore(m *Memory) float64 {
	sim := 0.0
	if m.SimilarityScore != nil {
		sim = *m.SimilarityScore
	}
	return 0.7*sim + 0.3*m.ImportanceScore
}

// GetByID retrieves a memory by id, checking the primary first and
// falling through to secondaries so a read survives the primary being
// temporarily down for a memory that already replicated elsewhere.
func (c *Client) GetByID(ctx context.Context, id uuid.UUID) (*Memory, error) {
	c.mu.RLock()
	order := append([]string{c.primaryName}, c.providerOrder...)
	providers := c.providers
	c.mu.RUnlock()

	var lastErr error
	checked := make(map[string]bool)
	for _, name := range order {
		if checked[name] {
			continue
		}
		checked[name] = true
		provider, ok := providers[name]
		if !ok {
			continue
		}
		m, err := provider.Get(ctx, id)
		if err == nil {
			return fromStorageMemory(m), nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrNotFound
	}
	return nil, NewMemoryError("GetByID", lastErr)
}

// SuggestEvolution looks up a memory by ID and returns an advisory
// evolution strategy for it, derived from its stored ADM score, access
// count, and age, with the confidence discounted by how much the
// memory's retention has decayed since it was last accessed.
func (c *Client) SuggestEvolution(ctx context.Context, id uuid.UUID) (*EvolutionHint, error) {
	m, err := c.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	admScore := admScoreFromMetadata(m.Metadata, m.ImportanceScore)

	ageDays := time.Since(m.CreatedAt).Hours() / 24
	strategy, confidence := c.scoringEngine.SuggestEvolutionStrategy(admScore, m.AccessCount, ageDays)

	var lastAccessed *time.Time
	if !m.LastAccessed.IsZero() {
		lastAccessed = &m.LastAccessed
	}
	retention := c.retentionTracker.Retention(m.CreatedAt, lastAccessed)
	confidence = c.retentionTracker.ConfidenceAdjustment(confidence, m.CreatedAt, lastAccessed)

	return &EvolutionHint{
		Strategy:   strategy,
		Confidence: confidence,
		ADMScore:   admScore,
		Retention:  retention,
	}, nil
}

// Delete removes a memory from every registered provider, returning
// true if at least one provider reported a deletion.
func (c *Client) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	c.mu.RLock()
	providers := make(map[string]storage.VectorStore, len(c.providers))
	for k, v := range c.providers {
		providers[k] = v
	}
	c.mu.RUnlock()

	deleted := false
	for _, provider := range providers {
		ok, err := provider.Delete(ctx, id)
		if err == nil && ok {
			deleted = true
		}
	}
	return deleted, nil
}

// Health reports per-provider health plus the Unified Store's own
// circuit breaker states.
func (c *Client) Health(ctx context.Context) map[string]ProviderHealth {
	c.mu.RLock()
	providers := make(map[string]storage.VectorStore, len(c.providers))
	for k, v := range c.providers {
		providers[k] = v
	}
	breakers := c.breakers
	c.mu.RUnlock()

	out := make(map[string]ProviderHealth, len(providers))
	for name, provider := range providers {
		var ph ProviderHealth
		h, err := provider.HealthCheck(ctx)
		if err != nil {
			ph = ProviderHealth{Status: StatusError, Details: map[string]interface{}{"error": err.Error()}}
		} else {
			ph = ProviderHealth{Status: ProviderStatus(h.Status), Details: h.Details}
		}
		if b := breakers[name]; b != nil {
			if ph.Details == nil {
				ph.Details = map[string]interface{}{}
			}
			ph.Details["breaker_state"] = b.State()
		}
		out[name] = ph
	}
	return out
}

// Stats returns a snapshot of the running counters maintained since
// process start.
func (c *Client) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	usage := make(map[string]int64, len(c.stats.ProviderUsage))
	for k, v := range c.stats.ProviderUsage {
		usage[k] = v
	}
	snapshot := c.stats
	snapshot.ProviderUsage = usage
	return snapshot
}

// ClearCache empties the query cache. Never invoked implicitly on
// Store; callers call this explicitly when they need a hard refresh.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// Close stops the replication worker pool and closes every provider.
func (c *Client) Close() error {
	var firstErr error
	c.closeOnce.Do(func() {
		close(c.replicationQueue)
		c.workerWG.Wait()

		c.mu.RLock()
		defer c.mu.RUnlock()
		for _, provider := range c.providers {
			if err := provider.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

func (c *Client) recordStore(provider string) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats.TotalStores++
	c.stats.ProviderUsage[provider]++
}

func (c *Client) recordQuery(elapsed time.Duration, cacheHit bool) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats.TotalQueries++
	if cacheHit {
		c.stats.CacheHits++
		return
	}
	c.stats.CacheMisses++
	ms := float64(elapsed.Microseconds()) / 1000.0
	n := float64(c.stats.TotalQueries - c.stats.CacheHits)
	if n <= 1 {
		c.stats.AvgQueryTimeMS = ms
	} else {
		c.stats.AvgQueryTimeMS += (ms - c.stats.AvgQueryTimeMS) / n
	}
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

func providerName(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

func timeoutOrDefault(seconds float64) time.Duration {
	if seconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(seconds * float64(time.Second))
}

func getStr(m map[string]interface{}, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}

func getInt(m map[string]interface{}, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

