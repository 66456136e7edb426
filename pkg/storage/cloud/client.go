// Package cloud provides the optional managed Vector Provider: a thin
// REST client against a hosted vector database. It is disabled by
// default; when enabled it participates as a secondary replication
// target and as a read source when a query names it. It becomes the
// primary only when no other provider initialized.
//
// No single managed vector database is assumed. The wire contract here
// (POST /vectors, POST /query, GET /vectors/{id}, DELETE /vectors/{id},
// GET /healthz) is the kind of minimal REST surface most hosted vector
// stores expose behind a gateway; swapping in a concrete provider's SDK
// later only touches this file.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/core-nexus/ltm-service/pkg/resilience"
	"github.com/core-nexus/ltm-service/pkg/storage"
)

// Client implements storage.VectorStore against a hosted vector
// database reachable over HTTP.
type Client struct {
	httpClient *http.Client
	breaker    *resilience.Breaker
	endpoint   string
	apiKey     string
	collection string
	logger     *zap.SugaredLogger
}

// Config configures the cloud provider.
type Config struct {
	Endpoint   string
	APIKey     string
	Collection string
	Timeout    time.Duration
	// Logger receives request-failure diagnostics. A nil Logger is
	// replaced with a no-op sink.
	Logger *zap.SugaredLogger
}

// NewClient constructs a cloud provider client. It does not dial out;
// reachability is confirmed by the first HealthCheck.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, storage.NewProviderError("cloud.NewClient", storage.ErrInvalidConfig)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger.Debugw("cloud provider ready", "endpoint", cfg.Endpoint, "collection", cfg.Collection)
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		breaker:    resilience.NewBreaker(resilience.Config{Name: "cloud-vector-store"}),
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		logger:     logger,
	}, nil
}

type storeRequest struct {
	ID         string                 `json:"id,omitempty"`
	Content    string                 `json:"content"`
	Embedding  []float32              `json:"embedding"`
	Metadata   map[string]interface{} `json:"metadata"`
	Collection string                 `json:"collection"`
}

type storeResponse struct {
	ID string `json:"id"`
}

func (c *Client) Store(ctx context.Context, content string, embedding []float32, metadata map[string]interface{}) (uuid.UUID, error) {
	req := storeRequest{Content: content, Embedding: embedding, Metadata: metadata, Collection: c.collection}
	if presetID, ok := metadata["_preset_id"].(uuid.UUID); ok {
		req.ID = presetID.String()
	}

	var resp storeResponse
	_, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, c.doJSON(ctx, http.MethodPost, "/vectors", req, &resp)
	})
	if err != nil {
		c.logger.Warnw("cloud provider store failed", "error", err)
		return uuid.Nil, storage.NewProviderError("cloud.Store", err)
	}

	id, err := uuid.Parse(resp.ID)
	if err != nil {
		return uuid.Nil, storage.NewProviderError("cloud.Store", err)
	}
	return id, nil
}

type queryRequest struct {
	Embedding  []float32              `json:"embedding"`
	Limit      int                    `json:"limit"`
	Filters    map[string]interface{} `json:"filters"`
	Collection string                 `json:"collection"`
}

type queryResponse struct {
	Matches []struct {
		ID              string                 `json:"id"`
		Content         string                 `json:"content"`
		Metadata        map[string]interface{} `json:"metadata"`
		Score           float64                `json:"score"`
		ImportanceScore float64                `json:"importance_score"`
		CreatedAt       time.Time              `json:"created_at"`
	} `json:"matches"`
}

// Query returns an empty slice (not an error) on any failure, per the
// partial-results contract other providers share.
func (c *Client) Query(ctx context.Context, queryEmbedding []float32, limit int, filters map[string]interface{}) ([]*storage.Memory, error) {
	req := queryRequest{Embedding: queryEmbedding, Limit: limit, Filters: filters, Collection: c.collection}
	var resp queryResponse
	_, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, c.doJSON(ctx, http.MethodPost, "/query", req, &resp)
	})
	if err != nil {
		c.logger.Warnw("cloud provider query failed, returning partial results", "error", err)
		return []*storage.Memory{}, nil
	}

	out := make([]*storage.Memory, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			continue
		}
		score := m.Score
		out = append(out, &storage.Memory{
			ID:              id,
			Content:         m.Content,
			Metadata:        m.Metadata,
			ImportanceScore: m.ImportanceScore,
			SimilarityScore: &score,
			CreatedAt:       m.CreatedAt,
		})
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id uuid.UUID) (*storage.Memory, error) {
	var m storage.Memory
	err := c.doJSON(ctx, http.MethodGet, "/vectors/"+id.String(), nil, &m)
	if err != nil {
		return nil, storage.NewProviderError("cloud.Get", err)
	}
	return &m, nil
}

func (c *Client) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	err := c.doJSON(ctx, http.MethodDelete, "/vectors/"+id.String(), nil, nil)
	if err != nil {
		return false, storage.NewProviderError("cloud.Delete", err)
	}
	return true, nil
}

func (c *Client) HealthCheck(ctx context.Context) (storage.Health, error) {
	err := c.doJSON(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return storage.Health{Status: storage.StatusError, Details: map[string]interface{}{"error": err.Error()}}, nil
	}
	return storage.Health{Status: storage.StatusHealthy}, nil
}

func (c *Client) GetStats(ctx context.Context) (map[string]interface{}, error) {
	var stats map[string]interface{}
	if err := c.doJSON(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return map[string]interface{}{"provider": "cloud", "error": err.Error()}, nil
	}
	return stats, nil
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloud provider request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cloud provider returned %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
