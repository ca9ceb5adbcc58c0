// Package utils holds small helpers shared by the CLI, handlers and repositories.
package utils

import (
	"fmt"
	"strings"
)

// ParseCSV splits a comma-separated string and returns trimmed non-empty values.
// Returns nil for empty/whitespace-only input.
func ParseCSV(s string) []string {
	var result []string
	for _, v := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ParsePairs parses "KEY=value" items of a comma-separated list. Keys and values
// are trimmed; a missing "=", an empty key or a repeated key is an error.
func ParsePairs(s string) (map[string]string, error) {
	items := ParseCSV(s)
	if items == nil {
		return nil, nil
	}

	pairs := make(map[string]string, len(items))
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid pair %q, expected KEY=value", item)
		}
		if _, dup := pairs[key]; dup {
			return nil, fmt.Errorf("duplicate key %s", key)
		}
		pairs[key] = strings.TrimSpace(value)
	}
	return pairs, nil
}
