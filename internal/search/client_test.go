package search

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureIndex_CreatesWithMapping(t *testing.T) {
	var createdBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/chunks":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/chunks":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&createdBody))
			json.NewEncoder(w).Encode(map[string]any{"acknowledged": true})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL})
	require.NoError(t, c.EnsureIndex(context.Background(), "chunks", 4))

	mappings, ok := createdBody["mappings"].(map[string]any)
	require.True(t, ok)
	props := mappings["properties"].(map[string]any)
	vector := props["vector"].(map[string]any)
	assert.Equal(t, "dense_vector", vector["type"])
	assert.Equal(t, float64(4), vector["dims"])
	assert.Equal(t, "cosine", vector["similarity"])
	assert.Contains(t, props, "start_offset")
	assert.Contains(t, props, "chunk_index")
}

func TestEnsureIndex_SkipsExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL})
	require.NoError(t, c.EnsureIndex(context.Background(), "chunks", 4))
}

func TestBulk_EncodesNDJSON(t *testing.T) {
	var lines []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/_bulk", r.URL.Path)
		require.Equal(t, "application/x-ndjson", r.Header.Get("Content-Type"))
		scanner := bufio.NewScanner(r.Body)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		json.NewEncoder(w).Encode(map[string]any{"errors": false, "items": []any{}})
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL})
	docs := []BulkDoc{
		{ID: "d-0", Doc: ChunkDoc{Text: "first", FileID: "f1", ChunkIndex: 0}},
		{ID: "d-1", Doc: ChunkDoc{Text: "second", FileID: "f1", ChunkIndex: 1}},
	}
	indexed, err := c.Bulk(context.Background(), "chunks", docs, false)
	require.NoError(t, err)
	assert.Equal(t, 2, indexed)
	require.Len(t, lines, 4, "action and source line per doc")

	var action map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &action))
	assert.Equal(t, "chunks", action["index"]["_index"])
	assert.Equal(t, "d-0", action["index"]["_id"])

	var src ChunkDoc
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &src))
	assert.Equal(t, "first", src.Text)
}

func TestBulk_PartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"errors": true,
			"items": []any{
				map[string]any{"index": map[string]any{"status": 201}},
				map[string]any{"index": map[string]any{
					"status": 400,
					"error":  map[string]any{"type": "mapper_parsing_exception", "reason": "bad field"},
				}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL})
	docs := []BulkDoc{{ID: "a", Doc: ChunkDoc{Text: "x"}}, {ID: "b", Doc: ChunkDoc{Text: "y"}}}
	indexed, err := c.Bulk(context.Background(), "chunks", docs, false)
	assert.Equal(t, 1, indexed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestKNNSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chunks/_search", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		knn := body["knn"].(map[string]any)
		assert.Equal(t, "vector", knn["field"])
		assert.Equal(t, float64(5), knn["k"])

		json.NewEncoder(w).Encode(map[string]any{
			"hits": map[string]any{
				"hits": []any{
					map[string]any{
						"_id":    "doc-1",
						"_score": 0.92,
						"_source": map[string]any{
							"text":             "matching chunk",
							"document_file_id": "f1",
							"chunk_index":      3,
							"page_number":      2,
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL})
	hits, err := c.KNNSearch(context.Background(), "chunks", []float32{0.1, 0.2}, 5, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc-1", hits[0].ID)
	assert.InDelta(t, 0.92, hits[0].Score, 0.001)
	assert.Equal(t, "matching chunk", hits[0].Source.Text)
	assert.Equal(t, 3, hits[0].Source.ChunkIndex)
}

func TestDeleteByFileID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chunks/_delete_by_query", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		term := body["query"].(map[string]any)["term"].(map[string]any)
		assert.Equal(t, "f1", term["document_file_id"])
		json.NewEncoder(w).Encode(map[string]any{"deleted": 7})
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL})
	deleted, err := c.DeleteByFileID(context.Background(), "chunks", "f1")
	require.NoError(t, err)
	assert.Equal(t, 7, deleted)
}

func TestDeleteIndex_MissingIsNoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL})
	assert.NoError(t, c.DeleteIndex(context.Background(), "gone"))
}
