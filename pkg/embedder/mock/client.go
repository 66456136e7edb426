// Package mock provides a deterministic embedder.Provider for tests
// and for development without a live embedding API key.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// Client produces deterministic pseudo-embeddings derived from a
// SHA-256 hash of the input text, so the same text always yields the
// same vector and similarity search behaves predictably in tests.
type Client struct {
	dimensions int
}

// NewClient creates a mock embedder producing vectors of the given
// dimensionality.
func NewClient(dimensions int) *Client {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &Client{dimensions: dimensions}
}

// Embed derives a pseudo-embedding from text's SHA-256 digest.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	return deterministicVector(text, c.dimensions), nil
}

// EmbedBatch embeds each text independently.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	result := make([][]float64, len(texts))
	for i, t := range texts {
		result[i] = deterministicVector(t, c.dimensions)
	}
	return result, nil
}

// Dimensions returns the configured vector length.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}

// deterministicVector expands a SHA-256 digest of seed into dims
// pseudo-random values in [-1, 1] by re-hashing with an incrementing
// counter once the digest is exhausted.
func deterministicVector(seed string, dims int) []float64 {
	vector := make([]float64, dims)
	block := sha256.Sum256([]byte(seed))
	counter := uint32(0)

	for i := 0; i < dims; i++ {
		byteIdx := (i * 4) % len(block)
		if i > 0 && byteIdx == 0 {
			counter++
			var buf [4]byte
			binary.BigEndian.PutUint32(buf[:], counter)
			next := sha256.Sum256(append(block[:], buf[:]...))
			block = next
			byteIdx = 0
		}
		raw := binary.BigEndian.Uint32(block[byteIdx : byteIdx+4])
		vector[i] = (float64(raw)/float64(^uint32(0)))*2 - 1
	}

	return vector
}
