package common

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const maxSnippet = 512

// ParseJSON unmarshals the outermost JSON object in body into a type T.
// Leading or trailing non-JSON noise (proxies that wrap error pages, BOMs)
// is ignored.
func ParseJSON[T any](body []byte) (T, error) {
	var zero T

	start := bytes.IndexByte(body, '{')
	end := bytes.LastIndexByte(body, '}')
	if start == -1 || end < start {
		return zero, fmt.Errorf("no JSON object found in body: %s", Snippet(body))
	}

	var result T
	if err := json.Unmarshal(body[start:end+1], &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w\nData: %s", err, Snippet(body))
	}

	return result, nil
}

// Snippet shortens body for inclusion in log messages.
func Snippet(body []byte) string {
	if len(body) <= maxSnippet {
		return string(body)
	}
	return string(body[:maxSnippet]) + "..."
}
