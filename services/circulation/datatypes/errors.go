// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"errors"
	"fmt"
)

// Domain error kinds. Services wrap these sentinels with fmt.Errorf("%w")
// so a precondition failure carries both a stable kind and a human-readable
// reason; the HTTP layer maps kinds to status codes with errors.Is.
var (
	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a state or uniqueness violation: duplicate active
	// loan, cap reached, duplicate reservation, already-cancelled, taken
	// email or ISBN.
	ErrConflict = errors.New("conflict")

	// ErrInvalid means a business-state precondition failed: inactive
	// member, wrong status for the requested transition, renewal blocked
	// by pending reservations.
	ErrInvalid = errors.New("invalid request")

	// ErrUnauthorized means missing or failed authentication.
	ErrUnauthorized = errors.New("unauthorized")
)

// NotFoundf builds an ErrNotFound with a formatted reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Conflictf builds an ErrConflict with a formatted reason.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// Invalidf builds an ErrInvalid with a formatted reason.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalid)
}

// Unauthorizedf builds an ErrUnauthorized with a formatted reason.
func Unauthorizedf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnauthorized)
}
