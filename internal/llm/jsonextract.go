package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	byteOrderMark = "\ufeff"
	codeFence     = "```"
)

// ExtractFirstJSONValue returns the first balanced JSON object or array found
// in raw model output. Markdown fences and surrounding prose are dropped.
// Unbalanced input yields the remainder from the opening character so that
// the caller's decode fails with a parse error. It never panics.
func ExtractFirstJSONValue(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, byteOrderMark)

	if strings.HasPrefix(s, codeFence) {
		if nl := strings.IndexByte(s, '\n'); nl != -1 {
			lang := strings.ToLower(strings.TrimSpace(s[len(codeFence):nl]))
			if lang == "" || lang == "json" {
				s = s[nl+1:]
				if closing := strings.LastIndex(s, codeFence); closing != -1 {
					s = s[:closing]
				}
			}
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexFunc(s, func(r rune) bool {
		return r != ' ' && r != '\t' && r != '\n' && r != '\r' && r != '\f' && r != '\v'
	})
	if start == -1 {
		return s
	}

	if s[start] != '{' && s[start] != '[' {
		obj := strings.IndexByte(s[start:], '{')
		arr := strings.IndexByte(s[start:], '[')
		j := obj
		if j == -1 || (arr != -1 && arr < j) {
			j = arr
		}
		if j == -1 {
			return strings.TrimSpace(s)
		}
		start += j
	}

	open := s[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for k := start; k < len(s); k++ {
		ch := s[k]

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
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : k+1])
			}
		}
	}

	return strings.TrimSpace(s[start:])
}

// ParseJSON extracts the first JSON value from raw model output and decodes it
// into v. Failures wrap ErrParse.
func ParseJSON(raw string, v any) error {
	cleaned := ExtractFirstJSONValue(raw)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}

// ParseJSONList decodes a list from raw model output into v, which must point
// to a slice. A bare array is decoded as is. An object, as produced by
// providers in JSON-object mode, yields its first array-valued field in
// document order, e.g. {"competitors":[...]}. Failures wrap ErrParse.
func ParseJSONList(raw string, v any) error {
	cleaned := []byte(ExtractFirstJSONValue(raw))
	if list, ok := firstArrayField(cleaned); ok {
		cleaned = list
	}
	if err := json.Unmarshal(cleaned, v); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}

// firstArrayField returns the first array value among the top-level fields
// of a JSON object. It reports false for arrays and non-objects.
func firstArrayField(data []byte) (json.RawMessage, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, false
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		if trimmed := bytes.TrimSpace(value); len(trimmed) > 0 && trimmed[0] == '[' {
			return trimmed, true
		}
	}
	return nil, false
}
