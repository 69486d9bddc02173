package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octorag/octorag/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware("secret-key", discardLogger())(next)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"valid key", "Bearer secret-key", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHandleChunk(t *testing.T) {
	s := &Server{
		log: discardLogger(),
		cfg: config.Config{DefaultChunkSize: 1000, DefaultChunkOverlap: 200, DefaultLanguage: "auto"},
	}

	body := `{"text":"One sentence. Another sentence follows here.","chunk_size":25,"overlap":5}`
	r := httptest.NewRequest(http.MethodPost, "/api/chunk", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleChunk(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Total  int `json:"total"`
		Chunks []struct {
			Text        string `json:"text"`
			Index       int    `json:"index"`
			StartOffset int    `json:"start_offset"`
			EndOffset   int    `json:"end_offset"`
		} `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Greater(t, resp.Total, 1)
	assert.Equal(t, 0, resp.Chunks[0].Index)
	assert.Equal(t, 0, resp.Chunks[0].StartOffset)
}

func TestHandleChunk_ZeroOverlap(t *testing.T) {
	s := &Server{
		log: discardLogger(),
		cfg: config.Config{DefaultChunkSize: 1000, DefaultChunkOverlap: 200, DefaultLanguage: "auto"},
	}

	// 30 runes with chunk_size 10 and an explicit overlap of 0: the
	// server default of 200 must not leak back in, and windows must
	// tile without overlap.
	body := `{"text":"aaaaaaaaaabbbbbbbbbbcccccccccc","chunk_size":10,"overlap":0}`
	r := httptest.NewRequest(http.MethodPost, "/api/chunk", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleChunk(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Chunks []struct {
			StartOffset int `json:"start_offset"`
			EndOffset   int `json:"end_offset"`
			Overlap     int `json:"overlap"`
		} `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Chunks, 3)
	for i, c := range resp.Chunks {
		assert.Zero(t, c.Overlap, "chunk %d", i)
		if i > 0 {
			assert.Equal(t, resp.Chunks[i-1].EndOffset, c.StartOffset)
		}
	}
}

func TestHandleChunk_InvalidConfig(t *testing.T) {
	s := &Server{
		log: discardLogger(),
		cfg: config.Config{DefaultChunkSize: 1000, DefaultChunkOverlap: 200, DefaultLanguage: "auto"},
	}

	body := `{"text":"hello","chunk_size":10,"overlap":10}`
	r := httptest.NewRequest(http.MethodPost, "/api/chunk", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleChunk(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChunk_EmptyText(t *testing.T) {
	s := &Server{
		log: discardLogger(),
		cfg: config.Config{DefaultChunkSize: 1000, DefaultChunkOverlap: 200, DefaultLanguage: "auto"},
	}

	r := httptest.NewRequest(http.MethodPost, "/api/chunk", strings.NewReader(`{"text":"   "}`))
	w := httptest.NewRecorder()
	s.handleChunk(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Total  int              `json:"total"`
		Chunks []map[string]any `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Total)
	assert.NotNil(t, resp.Chunks)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"dir/inner.txt", "inner.txt"},
		{"", "unnamed"},
		{".", "unnamed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), "input %q", tt.in)
	}
}
