package pipeline

import (
	"errors"
	"math/rand"
	"time"

	"github.com/octorag/octorag/internal/embedding"
	"github.com/octorag/octorag/internal/llm"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var embedErr *embedding.Retryable
	if errors.As(err, &embedErr) {
		return true
	}
	var llmErr *llm.Retryable
	return errors.As(err, &llmErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3
