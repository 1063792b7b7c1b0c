package vision

import (
	"encoding/json"
	"strings"

	"github.com/realenhance/restage/internal/errors"
)

// ExtractJSON pulls a JSON object out of free-text model output. Models
// routinely wrap their structured answers in markdown fences or surround
// them with prose, so extraction tries three strategies in order:
//
//  1. direct parse of the trimmed text;
//  2. parse of the first fenced code block (```json or bare ```);
//  3. brace-counted scan returning the longest substring that parses as
//     a JSON object.
//
// When all three fail the error wraps ErrNoJSONFound, never a silent
// default: fail-open and fail-closed callers decide their own reaction.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errors.Wrap(errors.ErrNoJSONFound, "empty text")
	}

	if raw, ok := tryObject(trimmed); ok {
		return raw, nil
	}
	if block, ok := fencedBlock(trimmed); ok {
		if raw, ok := tryObject(block); ok {
			return raw, nil
		}
	}
	if raw, ok := longestBracedObject(trimmed); ok {
		return raw, nil
	}
	return nil, errors.Wrapf(errors.ErrNoJSONFound, "text length %d", len(text))
}

// ExtractInto extracts a JSON object from text and unmarshals it into v.
func ExtractInto(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(errors.ErrVisionInvalidFormat, err.Error())
	}
	return nil
}

// tryObject reports whether s parses as a single JSON object.
func tryObject(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}

// fencedBlock returns the content of the first markdown code fence,
// stripping an optional language tag on the opening line.
func fencedBlock(s string) (string, bool) {
	const fence = "```"
	start := strings.Index(s, fence)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(fence):]

	// Drop the language tag line ("json", "JSON", or empty).
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		tag := strings.TrimSpace(rest[:nl])
		if tag == "" || strings.EqualFold(tag, "json") {
			rest = rest[nl+1:]
		}
	}

	end := strings.Index(rest, fence)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// longestBracedObject scans for balanced top-level brace spans and returns
// the longest one that parses as a JSON object. Brace counting respects
// string literals and escapes so braces inside values do not miscount.
func longestBracedObject(s string) (json.RawMessage, bool) {
	var best string
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		end, ok := matchBrace(s, start)
		if !ok {
			continue
		}
		span := s[start : end+1]
		if len(span) > len(best) {
			if _, ok := tryObject(span); ok {
				best = span
			}
		}
		// Resume after this balanced span; nested objects inside it
		// can never be longer.
		start = end
	}
	if best == "" {
		return nil, false
	}
	return json.RawMessage(best), true
}

// matchBrace returns the index of the brace closing the one at start.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
