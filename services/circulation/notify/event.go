// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package notify fans circulation lifecycle events out to connected
// websocket clients. The lifecycle engines publish; the hub routes each
// event either to one member's connections or to everyone.
package notify

import "time"

// EventType names what happened.
type EventType string

const (
	EventLoanCreated        EventType = "loan.created"
	EventLoanReturned       EventType = "loan.returned"
	EventLoanOverdue        EventType = "loan.overdue"
	EventLoanDueSoon        EventType = "loan.due_soon"
	EventReservationReady   EventType = "reservation.ready"
	EventReservationExpired EventType = "reservation.expired"
)

// Event is one notification. UserID zero means broadcast to all connected
// clients; otherwise only that member's connections receive it.
type Event struct {
	Type   EventType `json:"type"`
	UserID uint      `json:"userId,omitempty"`
	At     time.Time `json:"at"`
	Data   any       `json:"data,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, userID uint, data any) Event {
	return Event{Type: t, UserID: userID, At: time.Now().UTC(), Data: data}
}
