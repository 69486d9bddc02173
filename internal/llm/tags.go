package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DefaultTagKeys are the metadata facets extracted from each chunk and
// stored alongside it for filtering and display.
var DefaultTagKeys = []string{
	"categories",
	"topics",
	"years",
	"dates",
	"events",
	"venues",
	"people",
}

const tagSystemPrompt = "You are an information extraction assistant. " +
	"Return a compact JSON object with the requested keys, " +
	"leaving keys empty when no values are found."

// ExtractTags asks the model for structured metadata about a chunk of
// text. The result maps each requested key to the extracted values.
func (c *Client) ExtractTags(ctx context.Context, text string, keys []string) (map[string]any, error) {
	if len(keys) == 0 {
		keys = DefaultTagKeys
	}

	var sb strings.Builder
	sb.WriteString("Extract the following keys from the content: ")
	sb.WriteString(strings.Join(keys, ", "))
	sb.WriteString(".\n")
	sb.WriteString("For 'categories', provide a list of high-level categories that best describe the main topics.\n")
	sb.WriteString("Provide JSON only, no commentary.\n\nContent:\n")
	sb.WriteString(text)

	raw, err := c.complete(ctx, []message{
		{Role: "system", Content: tagSystemPrompt},
		{Role: "user", Content: sb.String()},
	}, 0.1)
	if err != nil {
		return nil, err
	}

	cleaned := stripCodeFence(raw)
	var tags map[string]any
	if err := json.Unmarshal([]byte(cleaned), &tags); err != nil {
		return nil, fmt.Errorf("parse tags json: %w (raw: %s)", err, truncate(cleaned, 200))
	}
	return tags, nil
}

var codeFenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// stripCodeFence removes a surrounding markdown code fence; models
// often wrap JSON in one despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}
