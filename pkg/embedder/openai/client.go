// Package openai implements embedder.Provider over the OpenAI
// Embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/core-nexus/ltm-service/pkg/resilience"
	"github.com/core-nexus/ltm-service/pkg/storage"
)

// Client wraps the OpenAI SDK with the error taxonomy and retry policy
// expected of the Embedding Model component.
type Client struct {
	client       *openai.Client
	model        openai.EmbeddingModel
	dimensions   int
	maxRetries   int
	maxBatchSize int
	breaker      *resilience.Breaker
	logger       *zap.SugaredLogger
}

// Config configures the OpenAI embedder.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
	MaxRetries int

	// MaxBatchSize caps how many texts EmbedBatch sends to the API in a
	// single request; larger batches are split into sequential chunks
	// and reassembled in input order. Defaults to 100.
	MaxBatchSize int

	// Logger receives per-request retry and failure diagnostics. A nil
	// Logger is replaced with a no-op sink.
	Logger *zap.SugaredLogger
}

// NewClient creates an OpenAI embedder client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, storage.NewProviderError("openai.NewClient", storage.ErrInvalidConfig)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	model := openai.AdaEmbeddingV2
	if cfg.Model != "" {
		model = openai.EmbeddingModel(cfg.Model)
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 1536
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	maxBatchSize := cfg.MaxBatchSize
	if maxBatchSize == 0 {
		maxBatchSize = 100
	}

	return &Client{
		client:       openai.NewClientWithConfig(apiCfg),
		model:        model,
		dimensions:   dimensions,
		maxRetries:   maxRetries,
		maxBatchSize: maxBatchSize,
		breaker:      resilience.NewBreaker(resilience.Config{Name: "openai-embedder"}),
		logger:       logger,
	}, nil
}

// Embed converts a single text to a vector, retrying transient
// failures with exponential backoff.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	results, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// EmbedBatch converts multiple texts to vectors, chunking the request to
// maxBatchSize texts per upstream call and reassembling the results in
// input order. Each chunk is retried as a unit on transient failure.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += c.maxBatchSize {
		end := start + c.maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := c.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		result = append(result, chunk...)
	}
	return result, nil
}

// embedChunk sends a single batch of at most maxBatchSize texts to the
// embeddings API, through the circuit breaker shared across calls to
// this client.
func (c *Client) embedChunk(ctx context.Context, texts []string) ([][]float64, error) {
	out, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return c.embedChunkOnce(ctx, texts)
	})
	if err != nil {
		c.logger.Errorw("embedding request failed", "texts", len(texts), "error", err)
		return nil, storage.NewProviderError("openai.EmbedBatch", err)
	}
	return out.([][]float64), nil
}

func (c *Client) embedChunkOnce(ctx context.Context, texts []string) ([][]float64, error) {
	var result [][]float64

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: c.model,
		})
		if err != nil {
			wrapped := classifyErr(err)
			if errors.Is(wrapped, storage.ErrRateLimited) {
				c.logger.Warnw("embedding rate limited, retrying", "attempt", attempt, "error", err)
			}
			return wrapped
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("%w: got %d embeddings, expected %d", storage.ErrAPIError, len(resp.Data), len(texts)))
		}

		result = make([][]float64, len(texts))
		for i, data := range resp.Data {
			vec := make([]float64, len(data.Embedding))
			for j, v := range data.Embedding {
				vec[j] = float64(v)
			}
			result[i] = vec
		}
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return nil, unwrapPermanent(err)
	}
	return result, nil
}

// classifyErr maps an OpenAI SDK error to the service's error
// taxonomy, marking non-retryable failures as backoff.Permanent.
func classifyErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return fmt.Errorf("%w: %v", storage.ErrRateLimited, err)
		case 408:
			return fmt.Errorf("%w: %v", storage.ErrTimeout, err)
		case 400, 401, 403, 404:
			return backoff.Permanent(fmt.Errorf("%w: %v", storage.ErrAPIError, err))
		default:
			return fmt.Errorf("%w: %v", storage.ErrAPIError, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(fmt.Errorf("%w: %v", storage.ErrTimeout, err))
	}
	return fmt.Errorf("%w: %v", storage.ErrAPIError, err)
}

func unwrapPermanent(err error) error {
	var perr *backoff.PermanentError
	if errors.As(err, &perr) {
		return perr.Err
	}
	return err
}

// Dimensions returns the configured vector dimensionality.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op; the OpenAI SDK holds no resources to release.
func (c *Client) Close() error {
	return nil
}
