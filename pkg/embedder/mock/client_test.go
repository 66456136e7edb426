package mock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/core-nexus/ltm-service/pkg/embedder/mock"
)

func TestEmbedIsDeterministic(t *testing.T) {
	c := mock.NewClient(16)
	a, err := c.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := c.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestEmbedDiffersOnDifferentText(t *testing.T) {
	c := mock.NewClient(16)
	a, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	b, err := c.Embed(context.Background(), "goodbye")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestEmbedRespectsDimensions(t *testing.T) {
	c := mock.NewClient(32)
	v, err := c.Embed(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, v, 32)
	require.Equal(t, 32, c.Dimensions())
}

func TestEmbedBatchMatchesIndividualEmbed(t *testing.T) {
	c := mock.NewClient(8)
	texts := []string{"one", "two", "three"}

	batch, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := c.Embed(context.Background(), text)
		require.NoError(t, err)
		require.Equal(t, single, batch[i])
	}
}

func TestNewClientDefaultsDimensions(t *testing.T) {
	c := mock.NewClient(0)
	require.Equal(t, 64, c.Dimensions())
}
