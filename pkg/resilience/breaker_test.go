package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/core-nexus/ltm-service/pkg/resilience"
)

func TestBreakerExecutePassesThroughResult(t *testing.T) {
	b := resilience.NewBreaker(resilience.Config{Name: "test"})

	result, err := b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
}

func TestBreakerTripsAfterMaxFailures(t *testing.T) {
	b := resilience.NewBreaker(resilience.Config{Name: "test", MaxFailures: 2, ResetTimeout: time.Minute})
	failing := func(ctx context.Context) (interface{}, error) { return nil, errors.New("boom") }

	_, _ = b.Execute(context.Background(), failing)
	_, _ = b.Execute(context.Background(), failing)

	_, err := b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "should not run", nil
	})
	require.Error(t, err)
	require.Equal(t, "open", b.State())
}
