package search

// DefaultVectorDim matches the default embedding model's output size.
const DefaultVectorDim = 768

// ChunkDoc is the schema of one indexed chunk. The positional fields
// allow later highlighting and citation of the exact source location.
type ChunkDoc struct {
	Text           string         `json:"text"`
	Vector         []float32      `json:"vector,omitempty"`
	VectorTextMeta []float32      `json:"vector_text_meta,omitempty"`
	FileID         string         `json:"document_file_id"`
	FileName       string         `json:"document_file_name"`
	FileSize       int64          `json:"document_file_size,omitempty"`
	Tags           map[string]any `json:"document_chunk_tags,omitempty"`
	PagesTotal     int            `json:"pages_total,omitempty"`
	PageNumber     int            `json:"page_number,omitempty"`
	ChunkIndex     int            `json:"chunk_index"`
	StartOffset    int            `json:"start_offset"`
	EndOffset      int            `json:"end_offset"`
	PageStart      int            `json:"page_start,omitempty"`
	PageEnd        int            `json:"page_end,omitempty"`
}

// Mappings returns the index mapping for chunk documents with a cosine
// dense_vector of the given dimension.
func Mappings(vectorDim int) map[string]any {
	if vectorDim <= 0 {
		vectorDim = DefaultVectorDim
	}
	vector := map[string]any{
		"type":       "dense_vector",
		"dims":       vectorDim,
		"index":      true,
		"similarity": "cosine",
	}
	return map[string]any{
		"properties": map[string]any{
			"text":                map[string]any{"type": "text"},
			"vector":              vector,
			"vector_text_meta":    vector,
			"document_file_id":    map[string]any{"type": "keyword"},
			"document_file_name":  map[string]any{"type": "keyword"},
			"document_file_size":  map[string]any{"type": "long"},
			"document_chunk_tags": map[string]any{"type": "object", "enabled": true},
			"pages_total":         map[string]any{"type": "integer"},
			"page_number":         map[string]any{"type": "integer"},
			"chunk_index":         map[string]any{"type": "integer"},
			"start_offset":        map[string]any{"type": "integer"},
			"end_offset":          map[string]any{"type": "integer"},
			"page_start":          map[string]any{"type": "integer"},
			"page_end":            map[string]any{"type": "integer"},
		},
	}
}
