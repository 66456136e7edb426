package resilience_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/core-nexus/ltm-service/pkg/resilience"
)

func TestRetrySucceedsEventually(t *testing.T) {
	attempts := 0
	err := resilience.Retry(context.Background(), 5, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := resilience.Retry(context.Background(), 5, func() error {
		attempts++
		return backoff.Permanent(errors.New("fatal"))
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := resilience.Retry(context.Background(), 2, func() error {
		attempts++
		return errors.New("always fails")
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)
}
