package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/octorag/octorag/internal/llm"
	"github.com/octorag/octorag/internal/search"
)

type searchRequest struct {
	Query string `json:"query"`
	Index string `json:"index,omitempty"`
	TopK  int    `json:"top_k,omitempty"`
	// Mode selects retrieval: "vector" (default) embeds the query and
	// runs KNN, "text" runs a keyword match.
	Mode string `json:"mode,omitempty"`
}

type searchResult struct {
	ID         string         `json:"id"`
	Score      float64        `json:"score"`
	Text       string         `json:"text"`
	FileID     string         `json:"document_file_id"`
	FileName   string         `json:"document_file_name"`
	Tags       map[string]any `json:"document_chunk_tags,omitempty"`
	PageNumber int            `json:"page_number,omitempty"`
	PagesTotal int            `json:"pages_total,omitempty"`
	ChunkIndex int            `json:"chunk_index"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	hits, err := s.retrieve(r, req)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}

	results := make([]searchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, toResult(h))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"total":   len(results),
		"results": results,
	})
}

// retrieve runs the requested retrieval mode against the index.
func (s *Server) retrieve(r *http.Request, req searchRequest) ([]search.Hit, error) {
	ctx := r.Context()
	index := s.index(req.Index)
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}

	if req.Mode == "text" {
		hits, err := s.orchestrator.SearchClient().MatchSearch(ctx, index, req.Query, topK)
		if err != nil {
			return nil, fmt.Errorf("text search: %w", err)
		}
		return hits, nil
	}

	vector, err := s.orchestrator.EmbeddingClient().Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.orchestrator.SearchClient().KNNSearch(ctx, index, vector, topK, 0)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

func toResult(h search.Hit) searchResult {
	return searchResult{
		ID:         h.ID,
		Score:      h.Score,
		Text:       h.Source.Text,
		FileID:     h.Source.FileID,
		FileName:   h.Source.FileName,
		Tags:       h.Source.Tags,
		PageNumber: h.Source.PageNumber,
		PagesTotal: h.Source.PagesTotal,
		ChunkIndex: h.Source.ChunkIndex,
	}
}

type ragRequest struct {
	Question string `json:"question"`
	Index    string `json:"index,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
	Stream   bool   `json:"stream,omitempty"`
}

func (s *Server) handleRAG(w http.ResponseWriter, r *http.Request) {
	var req ragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return
	}

	hits, err := s.retrieve(r, searchRequest{Query: req.Question, Index: req.Index, TopK: req.TopK})
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}

	contexts := make([]llm.Context, 0, len(hits))
	results := make([]searchResult, 0, len(hits))
	for _, h := range hits {
		contexts = append(contexts, llm.Context{
			Text:  h.Source.Text,
			Score: h.Score,
			Metadata: map[string]any{
				"document_file_name": h.Source.FileName,
				"page_number":        h.Source.PageNumber,
			},
		})
		results = append(results, toResult(h))
	}

	if req.Stream {
		s.streamAnswer(w, r, req.Question, contexts)
		return
	}

	answer, err := s.orchestrator.LLMClient().Answer(r.Context(), req.Question, contexts)
	if err != nil {
		jsonError(w, "generate answer: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"answer":  answer,
		"sources": results,
	})
}

// streamAnswer relays model output as server-sent events. Each token
// delta is one "data:" frame; the stream ends with "data: [DONE]".
func (s *Server) streamAnswer(w http.ResponseWriter, r *http.Request, question string, contexts []llm.Context) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	deltas, errs, err := s.orchestrator.LLMClient().AnswerStream(r.Context(), question, contexts)
	if err != nil {
		jsonError(w, "generate answer: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for delta := range deltas {
		payload, err := json.Marshal(map[string]string{"delta": delta})
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
	if err := <-errs; err != nil {
		s.log.Error("stream aborted", "error", err)
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintf(w, "data: %s\n\n", payload)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
