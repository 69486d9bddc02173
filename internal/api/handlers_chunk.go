package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/octorag/octorag/internal/chunker"
	"github.com/octorag/octorag/internal/document"
)

type chunkRequest struct {
	Text      string `json:"text"`
	ChunkSize int    `json:"chunk_size,omitempty"`
	// Pointer so an explicit 0 overrides the server default.
	Overlap  *int         `json:"overlap,omitempty"`
	Language chunker.Mode `json:"language,omitempty"`
}

// handleChunk splits raw text without ingesting it, for callers that
// want to inspect or post-process chunk boundaries themselves.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	var req chunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	cfg := chunker.Config{
		MaxChunkSize: s.cfg.DefaultChunkSize,
		Overlap:      s.cfg.DefaultChunkOverlap,
		Language:     chunker.Mode(s.cfg.DefaultLanguage),
	}
	if req.ChunkSize > 0 {
		cfg.MaxChunkSize = req.ChunkSize
	}
	if req.Overlap != nil {
		cfg.Overlap = *req.Overlap
	}
	if req.Language != "" {
		cfg.Language = req.Language
	}

	chunks, err := chunker.Split(req.Text, nil, cfg)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, chunker.ErrConfig) || errors.Is(err, chunker.ErrEncoding) {
			code = http.StatusBadRequest
		}
		jsonError(w, err.Error(), code)
		return
	}
	if chunks == nil {
		chunks = []document.Chunk{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"total":  len(chunks),
		"chunks": chunks,
	})
}
