package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// streamBuffer bounds the delta channel so a slow consumer applies
// backpressure to the upstream read instead of buffering unboundedly.
const streamBuffer = 16

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// AnswerStream is the streaming variant of Answer. It returns a channel
// of response deltas, closed when the upstream finishes, and an error
// channel that delivers at most one terminal error and is closed when
// the stream ends, so a receive after draining deltas yields nil on
// clean completion. Cancelling ctx stops the stream.
func (c *Client) AnswerStream(ctx context.Context, question string, contexts []Context) (<-chan string, <-chan error, error) {
	resp, err := c.do(ctx, chatRequest{
		Model:       c.model,
		Messages:    ragMessages(question, contexts),
		Temperature: 0.2,
		MaxTokens:   4096,
		Stream:      true,
	})
	if err != nil {
		return nil, nil, err
	}

	deltas := make(chan string, streamBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(deltas)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			line = bytes.TrimPrefix(line, []byte("data:"))
			line = bytes.TrimSpace(line)
			if bytes.Equal(line, []byte("[DONE]")) {
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue // Skip malformed keep-alive frames.
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case deltas <- chunk.Choices[0].Delta.Content:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("read stream: %w", err)
		}
	}()

	return deltas, errs, nil
}
