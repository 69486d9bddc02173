package llm

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

// Client calls an OpenAI-compatible /chat/completions endpoint for
// chat, metadata tagging, and retrieval-augmented answers.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	stats      *Stats
}

// Config configures the chat client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:18000/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		stats:      NewStats(time.Hour),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Context is one retrieved chunk handed to the model as grounding.
type Context struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chat sends a single-turn prompt and returns the model's reply.
func (c *Client) Chat(ctx context.Context, prompt, system string) (string, error) {
	var msgs []message
	if system != "" {
		msgs = append(msgs, message{Role: "system", Content: system})
	}
	msgs = append(msgs, message{Role: "user", Content: prompt})
	return c.complete(ctx, msgs, 0.2)
}

// Answer produces a grounded answer to question using the retrieved
// contexts.
func (c *Client) Answer(ctx context.Context, question string, contexts []Context) (string, error) {
	return c.complete(ctx, ragMessages(question, contexts), 0.2)
}

func (c *Client) complete(ctx context.Context, msgs []message, temperature float64) (string, error) {
	start := time.Now()
	resp, err := c.do(ctx, chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   4096,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	c.stats.Record(time.Since(start).Milliseconds())

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("llm error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from llm")
	}
	return apiResp.Choices[0].Message.Content, nil
}

// do issues the chat request and maps transient upstream failures to
// Retryable. The caller owns the response body on success.
func (c *Client) do(ctx context.Context, req chatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm api: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &Retryable{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("llm api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	return resp, nil
}

func ragMessages(question string, contexts []Context) []message {
	var sb strings.Builder
	sb.WriteString("Answer the question using only the provided context passages. ")
	sb.WriteString("Cite the page number and file name when the passage metadata provides them. ")
	sb.WriteString("If the context does not contain the answer, say so.\n\n")
	for i, c := range contexts {
		sb.WriteString(fmt.Sprintf("[Passage %d", i+1))
		if c.Metadata != nil {
			if name, ok := c.Metadata["document_file_name"].(string); ok && name != "" {
				sb.WriteString(", file " + name)
			}
			if page, ok := c.Metadata["page_number"]; ok {
				sb.WriteString(fmt.Sprintf(", page %v", page))
			}
		}
		sb.WriteString("]\n")
		sb.WriteString(c.Text)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)

	return []message{
		{Role: "system", Content: "You are a careful assistant that answers from the given context."},
		{Role: "user", Content: sb.String()},
	}
}

// Model returns the configured chat model name.
func (c *Client) Model() string {
	return c.model
}

// Stats returns the rolling latency stats for this client.
func (c *Client) Stats() *Stats {
	return c.stats
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Retryable indicates a transient upstream failure worth retrying.
type Retryable struct {
	StatusCode int
	Message    string
}

func (e *Retryable) Error() string {
	return fmt.Sprintf("retryable llm error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
