package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleListDocuments pages through indexed chunks grouped by source
// file.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	index := s.index(r.URL.Query().Get("index"))
	size := queryInt(r, "size", 100)
	from := queryInt(r, "from", 0)

	hits, err := s.orchestrator.SearchClient().Browse(r.Context(), index, size, from)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusBadGateway)
		return
	}

	type docSummary struct {
		FileID     string `json:"document_file_id"`
		FileName   string `json:"document_file_name"`
		FileSize   int64  `json:"document_file_size,omitempty"`
		PagesTotal int    `json:"pages_total,omitempty"`
		Chunks     int    `json:"chunks"`
	}

	order := make([]string, 0)
	byFile := make(map[string]*docSummary)
	for _, h := range hits {
		d, ok := byFile[h.Source.FileID]
		if !ok {
			d = &docSummary{
				FileID:     h.Source.FileID,
				FileName:   h.Source.FileName,
				FileSize:   h.Source.FileSize,
				PagesTotal: h.Source.PagesTotal,
			}
			byFile[h.Source.FileID] = d
			order = append(order, h.Source.FileID)
		}
		d.Chunks++
	}

	docs := make([]docSummary, 0, len(order))
	for _, id := range order {
		docs = append(docs, *byFile[id])
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"index":     index,
		"documents": docs,
	})
}

// handleDeleteDocument removes every chunk of one source file.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	index := s.index(r.URL.Query().Get("index"))

	deleted, err := s.orchestrator.SearchClient().DeleteByFileID(r.Context(), index, docID)
	if err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"document_file_id": docID,
		"index":            index,
		"chunks_deleted":   deleted,
	})
}

func (s *Server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.orchestrator.SearchClient().EnsureIndex(r.Context(), name, s.cfg.VectorDim); err != nil {
		jsonError(w, "failed to create index: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"index": name, "created": true})
}

func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.orchestrator.SearchClient().DeleteIndex(r.Context(), name); err != nil {
		jsonError(w, "failed to delete index: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"index": name, "deleted": true})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
