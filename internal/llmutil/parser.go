// internal/llmutil/parser.go
package llmutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
)

// ErrNoJSON is returned when a response contains nothing that looks like a
// JSON object.
var ErrNoJSON = errors.New("no JSON object found in model response")

// Regex definitions use \x60 for backticks because Go raw strings cannot
// contain them.
var fencedObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json|JSON)?\\s*({.*})\\s*\x60\x60\x60")

// ExtractJSONObject pulls the JSON object out of a model response: the body
// of a fenced code block when present, otherwise the span from the first
// '{' to the last '}'.
func ExtractJSONObject(response string) (string, error) {
	response = strings.TrimSpace(response)
	if m := fencedObjectRegex.FindStringSubmatch(response); len(m) > 1 {
		return m[1], nil
	}
	first := strings.Index(response, "{")
	last := strings.LastIndex(response, "}")
	if first == -1 || last <= first {
		return "", ErrNoJSON
	}
	return response[first : last+1], nil
}

// ParseJSONResponse parses a model response into T, tolerating markdown
// fences and conversational text around the object.
func ParseJSONResponse[T any](response string) (*T, error) {
	raw, err := ExtractJSONObject(response)
	if err != nil {
		return nil, err
	}
	var result T
	if err := json.UnmarshalFromString(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model JSON: %w. Extracted JSON (truncated): %s", err, truncateString(raw, 500))
	}
	return &result, nil
}

// truncateString cuts s to maxLen bytes for logging.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
