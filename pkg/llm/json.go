package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a completion carries no parseable JSON value.
var ErrNoJSON = errors.New("no valid JSON found in response")

// thinkTagPattern matches a leading <think>...</think> block emitted by
// reasoning models.
var thinkTagPattern = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)

// fencePattern matches a markdown code block, capturing its body. A language
// tag is only recognised when a newline follows it, so inline fences such as
// ```SELECT 1``` keep their first word.
var fencePattern = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9_+-]*[ \t]*\r?\n)?(.*?)```")

// ExtractJSON returns the first balanced JSON object or array in a completion,
// skipping a leading <think> block and any prose or fences around the value.
func ExtractJSON(response string) (string, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	for _, open := range openingsInOrder(cleaned) {
		candidate, ok := balanced(cleaned, open)
		if ok && json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	if trimmed := strings.TrimSpace(cleaned); json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}
	return "", ErrNoJSON
}

// openingsInOrder lists '{' and '[' by first occurrence in s.
func openingsInOrder(s string) []byte {
	obj, arr := strings.IndexByte(s, '{'), strings.IndexByte(s, '[')
	switch {
	case obj < 0 && arr < 0:
		return nil
	case arr < 0:
		return []byte{'{'}
	case obj < 0:
		return []byte{'['}
	case obj < arr:
		return []byte{'{', '['}
	default:
		return []byte{'[', '{'}
	}
}

// balanced returns the substring from the first open bracket to its matching
// close, ignoring brackets inside JSON strings.
func balanced(s string, open byte) (string, bool) {
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseJSONResponse extracts JSON from a completion and decodes it into T.
// A completion without JSON fails with ErrNoJSON; a value that does not fit T
// fails with the decode error.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	raw, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return result, nil
}

// StripCodeFences returns the body of the first markdown code block in
// response, or the trimmed response when it has none. Leading <think> blocks
// are removed first.
func StripCodeFences(response string) string {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")
	if m := fencePattern.FindStringSubmatch(cleaned); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(cleaned)
}
