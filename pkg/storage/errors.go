package storage

import (
	"errors"
	"fmt"
)

// Predefined errors for the provider error taxonomy. Defined here
// rather than in pkg/core so every provider package can wrap its own
// failures without importing pkg/core, which itself imports the
// provider packages to wire them up — the same circular-dependency
// concern that keeps Memory mirrored in this package instead of
// aliased from core.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNoEmbedding   = errors.New("no embedding available")
	ErrProviderDown  = errors.New("provider unavailable")
	ErrRateLimited   = errors.New("rate limited")
	ErrTimeout       = errors.New("operation timed out")
	ErrAPIError      = errors.New("upstream api error")
	ErrNotFound      = errors.New("memory not found")
	ErrInternal      = errors.New("internal error")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ProviderError wraps an error with the operation that produced it.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ltm: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err with operation context op. Returns nil if
// err is nil, so callers can write:
//
//	if err != nil {
//	    return nil, NewProviderError("Store", err)
//	}
func NewProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Op: op, Err: err}
}

// MetricType defines the distance metric for vector similarity.
type MetricType string

const (
	MetricCosine MetricType = "cosine"
	MetricL2     MetricType = "l2"
	MetricIP     MetricType = "inner_product"
)

// IndexType selects the pgvector index algorithm.
type IndexType string

const (
	IndexTypeHNSW    IndexType = "hnsw"
	IndexTypeIVFFlat IndexType = "ivfflat"
)
