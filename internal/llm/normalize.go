package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNoJSON  = errors.New("no JSON object or array in model output")
	ErrNoItems = errors.New("model output has no items list")

	reFenceOpen = regexp.MustCompile("```json\\s*")
)

// ParseItems recovers the item list from free-form model text. Code fences are
// stripped, the first balanced JSON span is parsed strictly, and either
// {"items":[...]} or a bare array is accepted. Non-object members are dropped.
func ParseItems(raw string) ([]Item, error) {
	text := reFenceOpen.ReplaceAllString(raw, "")
	text = strings.ReplaceAll(text, "```", "")

	span, ok := firstJSONSpan(text)
	if !ok {
		return nil, ErrNoJSON
	}

	var doc any
	if err := json.Unmarshal([]byte(span), &doc); err != nil {
		return nil, fmt.Errorf("parse model json: %w", err)
	}

	var list []any
	switch v := doc.(type) {
	case []any:
		list = v
	case map[string]any:
		items, ok := v["items"].([]any)
		if !ok {
			return nil, ErrNoItems
		}
		list = items
	default:
		return nil, ErrNoItems
	}

	out := make([]Item, 0, len(list))
	for _, el := range list {
		if obj, ok := el.(map[string]any); ok {
			out = append(out, Item(obj))
		}
	}
	return out, nil
}

// firstJSONSpan returns the first balanced {...} or [...] region. Brackets
// inside string literals and escaped quotes are skipped.
func firstJSONSpan(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	for start >= 0 {
		if end, ok := matchClose(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexAny(s[start+1:], "{[")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchClose(s string, start int) (int, bool) {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
