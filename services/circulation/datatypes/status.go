// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// =============================================================================
// Member Types and User Status
// =============================================================================

// MemberType classifies a user for borrowing and reservation caps.
// Unrecognized types are treated as PUBLIC (the most restrictive caps) by
// the policy lookup.
type MemberType string

const (
	MemberStudent MemberType = "STUDENT"
	MemberTeacher MemberType = "TEACHER"
	MemberPublic  MemberType = "PUBLIC"
)

// Valid reports whether t is one of the known member types.
func (t MemberType) Valid() bool {
	switch t {
	case MemberStudent, MemberTeacher, MemberPublic:
		return true
	}
	return false
}

// UserStatus gates whether a member may borrow or reserve.
type UserStatus string

const (
	UserActive    UserStatus = "ACTIVE"
	UserInactive  UserStatus = "INACTIVE"
	UserSuspended UserStatus = "SUSPENDED"
)

// Valid reports whether s is a known user status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserActive, UserInactive, UserSuspended:
		return true
	}
	return false
}

// BookStatus marks whether a catalog record is in circulation at all,
// independent of copy availability.
type BookStatus string

const (
	BookAvailable BookStatus = "AVAILABLE"
	BookArchived  BookStatus = "ARCHIVED"
)

// =============================================================================
// Loan State Machine
// =============================================================================

// LoanStatus is the loan lifecycle state. All mutations go through the
// transition table below; the services layer rejects anything else at the
// single point of status mutation.
//
// State diagram:
//
//	ACTIVE ──► OVERDUE ──► RETURNED
//	  │            │
//	  ├──► RETURNED│
//	  └──► CANCELLED ◄────┘
type LoanStatus string

const (
	LoanActive    LoanStatus = "ACTIVE"
	LoanOverdue   LoanStatus = "OVERDUE"
	LoanReturned  LoanStatus = "RETURNED"
	LoanCancelled LoanStatus = "CANCELLED"
)

// loanTransitions is the authoritative transition table. RETURNED and
// CANCELLED are terminal.
var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanActive:    {LoanOverdue, LoanReturned, LoanCancelled},
	LoanOverdue:   {LoanReturned, LoanCancelled},
	LoanReturned:  {},
	LoanCancelled: {},
}

// CanTransition reports whether moving from s to next is allowed.
func (s LoanStatus) CanTransition(next LoanStatus) bool {
	for _, allowed := range loanTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s LoanStatus) Terminal() bool {
	return len(loanTransitions[s]) == 0
}

// Valid reports whether s is a known loan status.
func (s LoanStatus) Valid() bool {
	_, ok := loanTransitions[s]
	return ok
}

// =============================================================================
// Reservation State Machine
// =============================================================================

// ReservationStatus is the reservation lifecycle state.
//
// State diagram:
//
//	ACTIVE ──► FULFILLED
//	  ├──────► CANCELLED
//	  └──────► EXPIRED
//
// FULFILLED, CANCELLED, and EXPIRED are terminal. A fulfilled reservation is
// a terminal success and cannot be cancelled.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationActive:    {ReservationFulfilled, ReservationCancelled, ReservationExpired},
	ReservationFulfilled: {},
	ReservationCancelled: {},
	ReservationExpired:   {},
}

// CanTransition reports whether moving from s to next is allowed.
func (s ReservationStatus) CanTransition(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s ReservationStatus) Terminal() bool {
	return len(reservationTransitions[s]) == 0
}

// Valid reports whether s is a known reservation status.
func (s ReservationStatus) Valid() bool {
	_, ok := reservationTransitions[s]
	return ok
}
