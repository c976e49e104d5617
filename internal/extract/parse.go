package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
)

// ErrNoJSONObject is returned when model output contains no '{'.
var ErrNoJSONObject = errors.New("no JSON object in model output")

// CleanJSON isolates and repairs the first JSON object in raw model output.
// Repairs, in order: trim and drop markdown fences, cut the balanced object
// out of surrounding prose, remove trailing commas before '}' or ']', and
// drop closing brackets that match no opener.
func CleanJSON(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	obj, err := isolateObject(content)
	if err != nil {
		return "", err
	}

	obj = stripTrailingCommas(obj)
	obj = dropStrayClosers(obj)
	return obj, nil
}

// isolateObject scans from the first '{' to the brace that closes it,
// ignoring brackets inside strings. Mismatched closers are skipped so a
// stray ']' does not end the scan early. Output cut off mid-object is closed.
func isolateObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSONObject
	}

	var stack []byte
	inString, escaped := false, false
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
		case '{', '[':
			stack = append(stack, ch)
		case '}', ']':
			if len(stack) > 0 && opener(ch) == stack[len(stack)-1] {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					return s[start : i+1], nil
				}
			}
		}
	}

	if inString {
		return "", fmt.Errorf("unterminated string in model output")
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(s[start:]))
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(closer(stack[i]))
	}
	return b.String(), nil
}

func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
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

		if ch == '"' {
			inString = true
		}
		if ch == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func dropStrayClosers(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
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
		case '{', '[':
			stack = append(stack, ch)
		case '}', ']':
			if len(stack) == 0 || opener(ch) != stack[len(stack)-1] {
				continue
			}
			stack = stack[:len(stack)-1]
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func opener(closer byte) byte {
	if closer == '}' {
		return '{'
	}
	return '['
}

func closer(opener byte) byte {
	if opener == '{' {
		return '}'
	}
	return ']'
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

// ParseFilterSpec cleans raw model output and decodes it over the identity
// filter. Keys the model omits keep their identity value; unknown keys are
// ignored. Values of the wrong shape are coerced where the intent is clear
// (a bare string for a list, a numeric string for a price).
func ParseFilterSpec(raw string) (catalog.FilterSpec, error) {
	cleaned, err := CleanJSON(raw)
	if err != nil {
		return catalog.IdentityFilter(), err
	}

	var fields map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return catalog.IdentityFilter(), fmt.Errorf("decode filter JSON: %w", err)
	}

	spec := catalog.IdentityFilter()
	for key, value := range fields {
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "price_min":
			spec.PriceMin = decodePrice(value)
		case "price_max":
			spec.PriceMax = decodePrice(value)
		case "colors", "color":
			spec.Colors = decodeStrings(value)
		case "memories", "memory", "storage":
			spec.Memories = decodeStrings(value)
		case "ram":
			spec.RAM = decodeStrings(value)
		case "status":
			spec.Status = decodeString(value)
		case "attributes", "features":
			spec.Attributes = decodeStrings(value)
		}
	}

	return spec.Normalize(), nil
}

func decodePrice(raw json.RawMessage) *float64 {
	var v interface{}
	if err := decodeRaw(raw, &v); err != nil {
		return nil
	}

	var f float64
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return nil
		}
		f = n
	case string:
		f = catalog.ParsePrice(t)
	default:
		return nil
	}
	if f <= 0 {
		return nil
	}
	return &f
}

func decodeString(raw json.RawMessage) *string {
	var v interface{}
	if err := decodeRaw(raw, &v); err != nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// decodeStrings accepts a list, a single scalar, or an object. For objects
// the string values are taken as keywords; keys whose value is true are
// taken themselves.
func decodeStrings(raw json.RawMessage) []string {
	var v interface{}
	if err := decodeRaw(raw, &v); err != nil {
		return []string{}
	}
	return flatten(v)
}

func flatten(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case string:
		return []string{t}
	case json.Number:
		return []string{t.String()}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, flatten(item)...)
		}
		return out
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make([]string, 0, len(keys))
		for _, k := range keys {
			switch val := t[k].(type) {
			case bool:
				if val {
					out = append(out, k)
				}
			default:
				out = append(out, flatten(val)...)
			}
		}
		return out
	default:
		return []string{}
	}
}

func decodeRaw(raw json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
