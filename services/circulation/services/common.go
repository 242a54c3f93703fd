// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"github.com/stacksys/circ/pkg/validation"
	"github.com/stacksys/circ/services/circulation/datatypes"
	"github.com/stacksys/circ/services/circulation/notify"
)

// EventSink receives lifecycle events for fan-out to connected clients.
// Implemented by notify.Hub. Sinks must not block; delivery is best-effort
// and never part of the transaction that produced the event.
type EventSink interface {
	Publish(evt notify.Event)
}

// nopSink drops events. Used when a service is built without a hub, e.g. in
// CLI sweeps and tests that don't assert on notifications.
type nopSink struct{}

func (nopSink) Publish(notify.Event) {}

// orderClause resolves the caller's sort field and order against a column
// allowlist into a string safe for ORDER BY. Unknown fields and orders are
// ErrInvalid.
func orderClause(q *datatypes.PageQuery, fallback string, allowed []string) (string, error) {
	column, err := validation.SanitizeSortField(q.SortBy, fallback, allowed)
	if err != nil {
		return "", datatypes.Invalidf("%v", err)
	}
	order, err := validation.SanitizeSortOrder(q.SortOrder)
	if err != nil {
		return "", datatypes.Invalidf("%v", err)
	}
	return column + " " + order, nil
}
