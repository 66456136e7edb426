package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the complete configuration for a Unified Store client.
//
// Example:
//
//	cfg, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := core.NewClient(cfg)
type Config struct {
	Embedder    EmbedderConfig      `json:"embedder"`
	Postgres    ProviderConfig      `json:"postgres"`
	Local       ProviderConfig      `json:"local"`
	Cloud       ProviderConfig      `json:"cloud"`
	Cache       CacheConfig         `json:"cache"`
	Dedup       DedupConfig         `json:"dedup"`
	ADM         ADMConfig           `json:"adm"`
	Resilience  ResilienceConfig    `json:"resilience"`
	LogLevel    string              `json:"log_level"`
}

// EmbedderConfig configures the Embedding Model.
type EmbedderConfig struct {
	// Provider selects the embedding backend: "openai" or "mock".
	Provider   string `json:"provider"`
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	BaseURL    string `json:"base_url,omitempty"`
	Dimensions int    `json:"dimensions"`
	// MaxBatchSize bounds how many texts a single EmbedBatch call sends
	// upstream; larger batches are chunked transparently.
	MaxBatchSize int `json:"max_batch_size"`
}

// ProviderConfig is the declarative record for one vector provider.
//
// Lifecycle: created at startup from environment, immutable thereafter
// except that the Unified Store's initialization routine may select a
// different provider as primary if the declared primary failed to
// initialize — it does this by returning the chosen name, never by
// mutating a ProviderConfig in place.
type ProviderConfig struct {
	Name           string                 `json:"name"`
	Enabled        bool                   `json:"enabled"`
	Primary        bool                   `json:"primary"`
	Config         map[string]interface{} `json:"config"`
	RetryCount     int                    `json:"retry_count"`
	TimeoutSeconds float64                `json:"timeout_seconds"`
}

// CacheConfig configures the query-result cache.
type CacheConfig struct {
	// Backend selects "memory" (hashicorp/golang-lru) or "redis".
	Backend     string        `json:"backend"`
	TTLSeconds  int           `json:"ttl_seconds"`
	MaxEntries  int           `json:"max_entries"`
	RedisAddr   string        `json:"redis_addr,omitempty"`
}

// DedupConfig configures the Deduplication Service.
type DedupConfig struct {
	Mode               string  `json:"mode"` // off|log_only|active
	SimilarityThreshold float64 `json:"similarity_threshold"`
	ExactMatchOnly     bool    `json:"exact_match_only"`
}

// ADMConfig configures the ADM Scoring Engine's combining weights.
// Must sum to 1.0.
type ADMConfig struct {
	Enabled          bool    `json:"enabled"`
	WeightQuality    float64 `json:"weight_quality"`
	WeightRelevance  float64 `json:"weight_relevance"`
	WeightIntel      float64 `json:"weight_intelligence"`
	ConsolidationThreshold float64 `json:"consolidation_threshold"`
	PruningThreshold       float64 `json:"pruning_threshold"`
}

// ResilienceConfig configures the circuit breakers the Unified Store
// builds for every registered provider, primary included.
// DefaultTimeoutSeconds is loaded but not read by any call path.
type ResilienceConfig struct {
	BreakerMaxFailures  uint32 `json:"breaker_max_failures"`
	BreakerResetSeconds int    `json:"breaker_reset_seconds"`
	DefaultTimeoutSeconds float64 `json:"default_timeout_seconds"`
}

// LoadConfigFromEnv loads configuration from environment variables,
// searching upward for a .env file first (see FindEnvFile).
//
// Absent secrets never prevent startup: the caller is expected to run
// the resulting Config through a provider-initialization routine that
// tolerates any individual provider failing, as long as one succeeds.
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMENSIONS", "1536"))
	maxBatch, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_MAX_BATCH_SIZE", "100"))

	pgPort, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
	pgRetries, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_RETRY_COUNT", "3"))
	pgTimeout, _ := strconv.ParseFloat(getEnvOrDefault("POSTGRES_TIMEOUT_SECONDS", "30"), 64)

	localRetries, _ := strconv.Atoi(getEnvOrDefault("LOCAL_RETRY_COUNT", "1"))
	localTimeout, _ := strconv.ParseFloat(getEnvOrDefault("LOCAL_TIMEOUT_SECONDS", "10"), 64)

	cloudEnabled := os.Getenv("CLOUD_ENABLED") == "true"
	cloudRetries, _ := strconv.Atoi(getEnvOrDefault("CLOUD_RETRY_COUNT", "2"))
	cloudTimeout, _ := strconv.ParseFloat(getEnvOrDefault("CLOUD_TIMEOUT_SECONDS", "30"), 64)

	cacheTTL, _ := strconv.Atoi(getEnvOrDefault("CACHE_TTL_SECONDS", "300"))
	cacheMax, _ := strconv.Atoi(getEnvOrDefault("CACHE_MAX_ENTRIES", "10000"))

	dedupThreshold, _ := strconv.ParseFloat(getEnvOrDefault("DEDUP_SIMILARITY_THRESHOLD", "0.95"), 64)

	admWQ, _ := strconv.ParseFloat(getEnvOrDefault("ADM_WEIGHT_QUALITY", "0.3"), 64)
	admWR, _ := strconv.ParseFloat(getEnvOrDefault("ADM_WEIGHT_RELEVANCE", "0.4"), 64)
	admWI, _ := strconv.ParseFloat(getEnvOrDefault("ADM_WEIGHT_INTELLIGENCE", "0.3"), 64)
	admConsolidation, _ := strconv.ParseFloat(getEnvOrDefault("ADM_CONSOLIDATION_THRESHOLD", "0.8"), 64)
	admPruning, _ := strconv.ParseFloat(getEnvOrDefault("ADM_PRUNING_THRESHOLD", "0.2"), 64)

	breakerFailures, _ := strconv.Atoi(getEnvOrDefault("BREAKER_MAX_FAILURES", "5"))
	breakerReset, _ := strconv.Atoi(getEnvOrDefault("BREAKER_RESET_SECONDS", "30"))
	defaultTimeout, _ := strconv.ParseFloat(getEnvOrDefault("DEFAULT_TIMEOUT_SECONDS", "30"), 64)

	cfg := &Config{
		Embedder: EmbedderConfig{
			Provider:     getEnvOrDefault("EMBEDDING_PROVIDER", "openai"),
			APIKey:       os.Getenv("EMBEDDING_API_KEY"),
			Model:        getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
			BaseURL:      os.Getenv("EMBEDDING_BASE_URL"),
			Dimensions:   dims,
			MaxBatchSize: maxBatch,
		},
		Postgres: ProviderConfig{
			Name:    "pgvector",
			Enabled: getEnvOrDefault("POSTGRES_ENABLED", "true") == "true",
			Primary: true,
			Config: map[string]interface{}{
				"host":           getEnvOrDefault("POSTGRES_HOST", "localhost"),
				"port":           pgPort,
				"user":           getEnvOrDefault("POSTGRES_USER", "postgres"),
				"password":       os.Getenv("POSTGRES_PASSWORD"),
				"db_name":        getEnvOrDefault("POSTGRES_DATABASE", "ltm"),
				"table_name":     getEnvOrDefault("POSTGRES_TABLE", "vector_memories"),
				"ssl_mode":       getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				"distance_metric": getEnvOrDefault("POSTGRES_DISTANCE_METRIC", "cosine"),
				"index_type":     getEnvOrDefault("POSTGRES_INDEX_TYPE", "hnsw"),
			},
			RetryCount:     pgRetries,
			TimeoutSeconds: pgTimeout,
		},
		Local: ProviderConfig{
			Name:    "local",
			Enabled: true,
			Primary: false,
			Config: map[string]interface{}{
				"db_path":          getEnvOrDefault("LOCAL_DB_PATH", "./ltm_local.db"),
				"brute_force_below": 10000,
			},
			RetryCount:     localRetries,
			TimeoutSeconds: localTimeout,
		},
		Cloud: ProviderConfig{
			Name:    "cloud",
			Enabled: cloudEnabled,
			Primary: false,
			Config: map[string]interface{}{
				"endpoint": os.Getenv("CLOUD_ENDPOINT"),
				"token":    os.Getenv("CLOUD_API_KEY"),
			},
			RetryCount:     cloudRetries,
			TimeoutSeconds: cloudTimeout,
		},
		Cache: CacheConfig{
			Backend:    getEnvOrDefault("CACHE_BACKEND", "memory"),
			TTLSeconds: cacheTTL,
			MaxEntries: cacheMax,
			RedisAddr:  os.Getenv("CACHE_REDIS_ADDR"),
		},
		Dedup: DedupConfig{
			Mode:                getEnvOrDefault("DEDUP_MODE", "active"),
			SimilarityThreshold: dedupThreshold,
			ExactMatchOnly:      os.Getenv("DEDUP_EXACT_MATCH_ONLY") == "true",
		},
		ADM: ADMConfig{
			Enabled:                getEnvOrDefault("ADM_ENABLED", "true") == "true",
			WeightQuality:          admWQ,
			WeightRelevance:        admWR,
			WeightIntel:            admWI,
			ConsolidationThreshold: admConsolidation,
			PruningThreshold:       admPruning,
		},
		Resilience: ResilienceConfig{
			BreakerMaxFailures:    uint32(breakerFailures),
			BreakerResetSeconds:   breakerReset,
			DefaultTimeoutSeconds: defaultTimeout,
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// LoadConfigFromEnvFile loads configuration after loading a specific
// .env file.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, NewMemoryError("LoadConfigFromEnvFile", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file, bypassing
// environment variables entirely.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if !c.Postgres.Enabled && !c.Local.Enabled && !c.Cloud.Enabled {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	sum := c.ADM.WeightQuality + c.ADM.WeightRelevance + c.ADM.WeightIntel
	if c.ADM.Enabled && (sum < 0.999 || sum > 1.001) {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// FindEnvFile searches the current directory and up to 4 parent
// directories for a .env or .env.example file.
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
