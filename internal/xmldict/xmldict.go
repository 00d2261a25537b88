// Package xmldict decodes XML API responses into nested maps and
// normalizes the shapes the management API is inconsistent about.
package xmldict

import (
	"fmt"

	"github.com/clbanning/mxj/v2"
)

// Parse decodes raw XML into a nested map. Element attributes appear
// under "-"-prefixed keys (e.g. `<response status="success">` yields
// "-status"), character data under "#text".
func Parse(raw []byte) (map[string]any, error) {
	m, err := mxj.NewMapXml(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode xml response: %w", err)
	}
	return map[string]any(m), nil
}

// Entries normalizes a field that the API serializes as a single object
// when the source has exactly one child and as a list when it has several.
// A single map becomes a one-element slice; a slice passes through in
// order; nil and anything non-map yields nil. Already-normalized input is
// returned element-for-element unchanged.
func Entries(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

// Get walks nested maps by key and returns the value at the end of the
// path, or false if any intermediate key is absent or not a map.
func Get(m map[string]any, path ...string) (any, bool) {
	var v any = m
	for _, key := range path {
		node, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		if v, ok = node[key]; !ok {
			return nil, false
		}
	}
	return v, true
}

// Text returns the string value at path. Elements that carry attributes
// keep their character data under "#text"; Text unwraps that case too.
func Text(m map[string]any, path ...string) (string, bool) {
	v, ok := Get(m, path...)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case map[string]any:
		if s, ok := t["#text"].(string); ok {
			return s, true
		}
	}
	return "", false
}
