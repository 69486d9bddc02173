package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client communicates with an Elasticsearch cluster over its REST API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// Config configures the search client.
type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:9200"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Hit is one search result.
type Hit struct {
	ID     string
	Score  float64
	Source ChunkDoc
}

// Ping checks cluster reachability.
func (c *Client) Ping(ctx context.Context) error {
	var out json.RawMessage
	return c.send(ctx, http.MethodGet, "/", nil, &out)
}

// IndexExists reports whether the index is present.
func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodHead, "/"+index, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("head index: %w", err)
	}
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("head index %s: status %d", index, resp.StatusCode)
	}
}

// EnsureIndex creates the index with the chunk mapping unless it
// already exists.
func (c *Client) EnsureIndex(ctx context.Context, index string, vectorDim int) error {
	exists, err := c.IndexExists(ctx, index)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	body := map[string]any{"mappings": Mappings(vectorDim)}
	return c.send(ctx, http.MethodPut, "/"+index, body, nil)
}

// DeleteIndex removes the index. Missing indexes are not an error.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/"+index, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("delete index %s: status %d: %s", index, resp.StatusCode, string(respBody))
	}
	return nil
}

// IndexDoc stores one chunk document under the given id.
func (c *Client) IndexDoc(ctx context.Context, index, id string, doc ChunkDoc, refresh bool) error {
	path := fmt.Sprintf("/%s/_doc/%s", index, id)
	if refresh {
		path += "?refresh=true"
	}
	return c.send(ctx, http.MethodPut, path, doc, nil)
}

// BulkDoc pairs a document id with its body for bulk indexing.
type BulkDoc struct {
	ID  string
	Doc ChunkDoc
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Bulk indexes documents with the NDJSON _bulk API. Returns the number
// indexed and an error describing the first failed item, if any.
func (c *Client) Bulk(ctx context.Context, index string, docs []BulkDoc, refresh bool) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		if err := enc.Encode(map[string]any{"index": map[string]any{"_index": index, "_id": d.ID}}); err != nil {
			return 0, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(d.Doc); err != nil {
			return 0, fmt.Errorf("encode bulk doc: %w", err)
		}
	}

	path := "/_bulk"
	if refresh {
		path += "?refresh=true"
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("bulk: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return 0, fmt.Errorf("read bulk response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bulk: status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
	}

	var br bulkResponse
	if err := json.Unmarshal(respBody, &br); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}
	if !br.Errors {
		return len(docs), nil
	}

	indexed := 0
	var firstErr error
	for _, item := range br.Items {
		for _, result := range item {
			if result.Error == nil {
				indexed++
			} else if firstErr == nil {
				firstErr = fmt.Errorf("bulk item failed: %s: %s", result.Error.Type, result.Error.Reason)
			}
		}
	}
	return indexed, firstErr
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string   `json:"_id"`
			Score  float64  `json:"_score"`
			Source ChunkDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// KNNSearch runs an approximate nearest-neighbor query over the vector
// field.
func (c *Client) KNNSearch(ctx context.Context, index string, vector []float32, k, numCandidates int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	if numCandidates < k {
		numCandidates = k * 3
	}
	body := map[string]any{
		"knn": map[string]any{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": numCandidates,
		},
		"_source": true,
	}
	return c.search(ctx, index, body)
}

// MatchSearch runs a keyword match query over the text field.
func (c *Client) MatchSearch(ctx context.Context, index, query string, size int) ([]Hit, error) {
	if size <= 0 {
		size = 10
	}
	body := map[string]any{
		"query": map[string]any{"match": map[string]any{"text": query}},
		"size":  size,
	}
	return c.search(ctx, index, body)
}

// Browse pages through all documents in the index in chunk order.
func (c *Client) Browse(ctx context.Context, index string, size, from int) ([]Hit, error) {
	if size <= 0 {
		size = 20
	}
	body := map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
		"size":  size,
		"from":  from,
		"sort": []map[string]any{
			{"document_file_id": map[string]any{"order": "asc"}},
			{"chunk_index": map[string]any{"order": "asc"}},
		},
	}
	return c.search(ctx, index, body)
}

func (c *Client) search(ctx context.Context, index string, body map[string]any) ([]Hit, error) {
	var resp searchResponse
	if err := c.send(ctx, http.MethodPost, "/"+index+"/_search", body, &resp); err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score, Source: h.Source})
	}
	return hits, nil
}

// DeleteByFileID removes every chunk belonging to one source document.
func (c *Client) DeleteByFileID(ctx context.Context, index, fileID string) (int, error) {
	return c.deleteByQuery(ctx, index, map[string]any{
		"term": map[string]any{"document_file_id": fileID},
	})
}

// DeleteAllDocs empties the index without dropping its mapping.
func (c *Client) DeleteAllDocs(ctx context.Context, index string) (int, error) {
	return c.deleteByQuery(ctx, index, map[string]any{"match_all": map[string]any{}})
}

func (c *Client) deleteByQuery(ctx context.Context, index string, query map[string]any) (int, error) {
	body := map[string]any{"query": query}
	var resp struct {
		Deleted int `json:"deleted"`
	}
	path := "/" + index + "/_delete_by_query?conflicts=proceed&refresh=true"
	if err := c.send(ctx, http.MethodPost, path, body, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

// send marshals body (if any), issues the request, and decodes the
// response into out (if non-nil). Non-2xx statuses become errors
// carrying the response excerpt.
func (c *Client) send(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(string(respBody), 300))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
