// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"fmt"
	"strings"
)

// SanitizeSortField resolves a caller-supplied sort field against an
// allowlist of column names, returning the fallback when the field is empty.
// The returned value is safe to interpolate into an ORDER BY clause.
//
// Matching is case-sensitive on the allowlist entries, which are expected to
// be snake_case column names; camelCase input is folded to snake_case first
// so API callers can use either convention.
func SanitizeSortField(field, fallback string, allowed []string) (string, error) {
	if strings.TrimSpace(field) == "" {
		return fallback, nil
	}
	column := camelToSnake(strings.TrimSpace(field))
	for _, a := range allowed {
		if column == a {
			return column, nil
		}
	}
	return "", fmt.Errorf("unsupported sort field: %q", field)
}

// SanitizeSortOrder returns "asc" or "desc", defaulting to desc for empty
// input and rejecting anything else.
func SanitizeSortOrder(order string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "":
		return "desc", nil
	case "asc":
		return "asc", nil
	case "desc":
		return "desc", nil
	default:
		return "", fmt.Errorf("sort order must be asc or desc, got %q", order)
	}
}

func camelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
