package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/core-nexus/ltm-service/pkg/embedder/openai"
	"github.com/core-nexus/ltm-service/pkg/storage"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := openai.NewClient(&openai.Config{})
	require.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	c, err := openai.NewClient(&openai.Config{APIKey: "sk-test"})
	require.NoError(t, err)
	require.Equal(t, 1536, c.Dimensions())
}

func TestEmbedReturnsVectorFromAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float64{0.1, 0.2, 0.3}, "index": 0},
			},
			"model": "text-embedding-ada-002",
			"usage": map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	defer srv.Close()

	c, err := openai.NewClient(&openai.Config{APIKey: "sk-test", BaseURL: srv.URL, Dimensions: 3})
	require.NoError(t, err)

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}

func TestEmbedDoesNotRetryOnAuthError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "invalid api key", "type": "invalid_request_error"},
		})
	}))
	defer srv.Close()

	c, err := openai.NewClient(&openai.Config{APIKey: "sk-bad", BaseURL: srv.URL, MaxRetries: 3})
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "hello")
	require.Error(t, err)
	require.True(t, errors.Is(err, storage.ErrAPIError))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEmbedBatchChunksAndReassemblesInOrder(t *testing.T) {
	var requestSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		requestSizes = append(requestSizes, len(req.Input))

		data := make([]map[string]interface{}, len(req.Input))
		for i, text := range req.Input {
			var idx int
			_, _ = fmt.Sscanf(text, "text-%d", &idx)
			data[i] = map[string]interface{}{"embedding": []float64{float64(idx)}, "index": i}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data":  data,
			"model": "text-embedding-ada-002",
			"usage": map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	defer srv.Close()

	c, err := openai.NewClient(&openai.Config{APIKey: "sk-test", BaseURL: srv.URL, MaxBatchSize: 10})
	require.NoError(t, err)

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}

	vecs, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 25)
	require.Equal(t, []int{10, 10, 5}, requestSizes)
	for i, vec := range vecs {
		require.Equal(t, []float64{float64(i)}, vec)
	}
}
