// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import "testing"

func TestValidateISBN(t *testing.T) {
	valid := []string{
		"0306406152",        // ISBN-10
		"0-306-40615-2",     // hyphenated ISBN-10
		"080442957X",        // ISBN-10 with X check digit
		"9780306406157",     // ISBN-13
		"978-0-306-40615-7", // hyphenated ISBN-13
		"978 0 306 40615 7", // spaced ISBN-13
	}
	for _, isbn := range valid {
		if err := ValidateISBN(isbn); err != nil {
			t.Errorf("ValidateISBN(%q) = %v, want nil", isbn, err)
		}
	}

	invalid := []string{
		"",
		"030640615",        // too short
		"0306406153",       // bad ISBN-10 checksum
		"9780306406158",    // bad ISBN-13 checksum
		"03064061X2",       // X not in check position
		"97803064061570",   // too long
		"978030640615a",    // letter
		"'; DROP TABLE b—", // garbage
	}
	for _, isbn := range invalid {
		if err := ValidateISBN(isbn); err == nil {
			t.Errorf("ValidateISBN(%q) = nil, want error", isbn)
		}
	}
}

func TestNormalizeISBN(t *testing.T) {
	got, err := NormalizeISBN("0-8044-2957-x")
	if err != nil {
		t.Fatalf("NormalizeISBN: %v", err)
	}
	if got != "080442957X" {
		t.Errorf("NormalizeISBN = %q, want 080442957X", got)
	}

	if _, err := NormalizeISBN("not-an-isbn"); err == nil {
		t.Error("NormalizeISBN accepted garbage")
	}
}

func TestSanitizeSortField(t *testing.T) {
	allowed := []string{"title", "author", "created_at"}

	t.Run("empty uses fallback", func(t *testing.T) {
		got, err := SanitizeSortField("", "created_at", allowed)
		if err != nil || got != "created_at" {
			t.Errorf("got (%q, %v), want (created_at, nil)", got, err)
		}
	})

	t.Run("camelCase folds to snake_case", func(t *testing.T) {
		got, err := SanitizeSortField("createdAt", "title", allowed)
		if err != nil || got != "created_at" {
			t.Errorf("got (%q, %v), want (created_at, nil)", got, err)
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		if _, err := SanitizeSortField("fines; DROP TABLE users", "title", allowed); err == nil {
			t.Error("injection-shaped field accepted")
		}
	})
}

func TestSanitizeSortOrder(t *testing.T) {
	for in, want := range map[string]string{"": "desc", "asc": "asc", "DESC": "desc", " Asc ": "asc"} {
		got, err := SanitizeSortOrder(in)
		if err != nil || got != want {
			t.Errorf("SanitizeSortOrder(%q) = (%q, %v), want (%q, nil)", in, got, err, want)
		}
	}
	if _, err := SanitizeSortOrder("sideways"); err == nil {
		t.Error("invalid order accepted")
	}
}
