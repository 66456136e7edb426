package core

import (
	"fmt"

	"github.com/core-nexus/ltm-service/pkg/storage"
)

// Predefined errors for the service's error taxonomy (kinds, not
// types). These alias the sentinels defined in pkg/storage, since
// provider packages need to produce and classify the same errors
// without importing pkg/core (which imports the providers to wire
// them up).
var (
	// ErrInvalidInput covers empty content, bad similarity bounds, and
	// malformed filter values. Surfaced to the caller as 4xx-equivalent.
	ErrInvalidInput = storage.ErrInvalidInput

	// ErrNoEmbedding indicates no embedding was supplied and no
	// embedding model is configured.
	ErrNoEmbedding = storage.ErrNoEmbedding

	// ErrProviderDown indicates no provider can serve the operation:
	// none initialized at startup, or none offers the capability an
	// emergency search path needs.
	ErrProviderDown = storage.ErrProviderDown

	// ErrRateLimited, ErrTimeout, and ErrAPIError are transient
	// outbound errors. The OpenAI embedding client retries them with
	// exponential backoff (3 retries by default) and surfaces them once
	// retries are exhausted. Provider calls are not retried;
	// ProviderConfig.RetryCount is loaded but not read by any call path.
	ErrRateLimited = storage.ErrRateLimited
	ErrTimeout     = storage.ErrTimeout
	ErrAPIError    = storage.ErrAPIError

	// ErrNotFound indicates an id lookup miss.
	ErrNotFound = storage.ErrNotFound

	// ErrInternal covers unexpected failures; callers see a generic
	// message while the full context is logged.
	ErrInternal = storage.ErrInternal

	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = storage.ErrInvalidConfig
)

// MemoryError wraps an error with the operation that produced it.
//
// Example:
//
//	err := &MemoryError{Op: "Store", Err: ErrNoEmbedding}
//	// Error() returns: "ltm: Store: no embedding available"
type MemoryError struct {
	Op  string
	Err error
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("ltm: %s: %v", e.Op, e.Err)
}

func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError wraps err with operation context op. Returns nil if
// err is nil, so callers can write:
//
//	if err != nil {
//	    return nil, NewMemoryError("Store", err)
//	}
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{Op: op, Err: err}
}
