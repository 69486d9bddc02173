package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, calls *atomic.Int64, failFirst int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if int(n) <= failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]any{"data": []map[string]any{}}
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"embedding": []float32{0.1, 0.2, 0.3}}
		}
		resp["data"] = data
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbed(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, &calls, 0)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model"})
	vec, err := c.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, c.Dimension())
}

func TestEmbedBatch_CacheHitsSkipProvider(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, &calls, 0)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model"})
	ctx := context.Background()

	_, err := c.EmbedBatch(ctx, []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())

	// Second call is fully cached.
	vecs, err := c.EmbedBatch(ctx, []string{"two", "one"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, int64(1), calls.Load())

	// Mixed: only the miss goes upstream.
	_, err = c.EmbedBatch(ctx, []string{"one", "three"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestEmbed_RetryableStatus(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, &calls, 100)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model"})
	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)

	var retryable *Retryable
	require.ErrorAs(t, err, &retryable)
	assert.Equal(t, http.StatusServiceUnavailable, retryable.StatusCode)
}

func TestEmbedBatch_RejectsEmptyText(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused", Model: "test-model"})
	_, err := c.EmbedBatch(context.Background(), []string{"ok", ""})
	assert.Error(t, err)
}

func TestCache_CopyOnGet(t *testing.T) {
	cache := NewCache(4)
	cache.Set("k", []float32{1, 2})

	v, ok := cache.Get("k")
	require.True(t, ok)
	v[0] = 99

	again, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, float32(1), again[0])
}
