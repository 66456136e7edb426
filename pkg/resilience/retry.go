package resilience

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// Retry runs fn, retrying with exponential backoff up to maxRetries
// times after the first attempt (maxRetries+1 calls in all), bound by
// ctx. Wrap a non-retryable failure in backoff.Permanent
// inside fn to stop retrying immediately.
func Retry(ctx context.Context, maxRetries int, fn func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxRetries)), ctx)
	return backoff.Retry(fn, policy)
}
