// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for values that end
// up in database queries. Using these validators keeps user-provided sort
// fields and identifiers out of SQL fragments unchecked.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// isbnShape matches an ISBN after hyphen/space removal: ten digits with an
// optional X check character, or thirteen digits.
var isbnShape = regexp.MustCompile(`^(?:\d{9}[\dXx]|\d{13})$`)

// ValidateISBN checks that s is a structurally valid ISBN-10 or ISBN-13,
// including the checksum. Hyphens and spaces are ignored.
//
// Example:
//
//	if err := validation.ValidateISBN(req.ISBN); err != nil {
//	    return fmt.Errorf("invalid isbn: %w", err)
//	}
func ValidateISBN(s string) error {
	normalized := normalizeISBN(s)
	if normalized == "" {
		return fmt.Errorf("isbn cannot be empty")
	}
	if !isbnShape.MatchString(normalized) {
		return fmt.Errorf("invalid isbn format: %q (must be 10 or 13 digits)", s)
	}
	switch len(normalized) {
	case 10:
		if !validISBN10(normalized) {
			return fmt.Errorf("isbn-10 checksum failed: %q", s)
		}
	case 13:
		if !validISBN13(normalized) {
			return fmt.Errorf("isbn-13 checksum failed: %q", s)
		}
	}
	return nil
}

// NormalizeISBN strips hyphens and spaces and upper-cases the check
// character, returning the canonical form, or an error if invalid.
func NormalizeISBN(s string) (string, error) {
	if err := ValidateISBN(s); err != nil {
		return "", err
	}
	return normalizeISBN(s), nil
}

func normalizeISBN(s string) string {
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return strings.ToUpper(s)
}

func validISBN10(s string) bool {
	sum := 0
	for i := 0; i < 10; i++ {
		var v int
		if s[i] == 'X' {
			if i != 9 {
				return false
			}
			v = 10
		} else {
			v = int(s[i] - '0')
		}
		sum += (10 - i) * v
	}
	return sum%11 == 0
}

func validISBN13(s string) bool {
	sum := 0
	for i := 0; i < 13; i++ {
		v := int(s[i] - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	return sum%10 == 0
}
