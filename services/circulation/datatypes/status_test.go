// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "testing"

func TestLoanStatus_Transitions(t *testing.T) {
	allowed := []struct{ from, to LoanStatus }{
		{LoanActive, LoanOverdue},
		{LoanActive, LoanReturned},
		{LoanActive, LoanCancelled},
		{LoanOverdue, LoanReturned},
		{LoanOverdue, LoanCancelled},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to LoanStatus }{
		{LoanReturned, LoanActive},
		{LoanReturned, LoanOverdue},
		{LoanCancelled, LoanActive},
		{LoanOverdue, LoanActive},
		{LoanActive, LoanActive},
		{LoanReturned, LoanReturned},
	}
	for _, tc := range forbidden {
		if tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should be rejected", tc.from, tc.to)
		}
	}
}

func TestLoanStatus_Terminal(t *testing.T) {
	for status, terminal := range map[LoanStatus]bool{
		LoanActive:    false,
		LoanOverdue:   false,
		LoanReturned:  true,
		LoanCancelled: true,
	} {
		if status.Terminal() != terminal {
			t.Errorf("%s.Terminal() = %v, want %v", status, status.Terminal(), terminal)
		}
	}
}

func TestReservationStatus_Transitions(t *testing.T) {
	for _, to := range []ReservationStatus{ReservationFulfilled, ReservationCancelled, ReservationExpired} {
		if !ReservationActive.CanTransition(to) {
			t.Errorf("ACTIVE -> %s should be allowed", to)
		}
	}

	// Fulfilled is a terminal success: no cancel, no expiry, no reactivation.
	for _, from := range []ReservationStatus{ReservationFulfilled, ReservationCancelled, ReservationExpired} {
		if !from.Terminal() {
			t.Errorf("%s should be terminal", from)
		}
		for _, to := range []ReservationStatus{ReservationActive, ReservationFulfilled, ReservationCancelled, ReservationExpired} {
			if from.CanTransition(to) {
				t.Errorf("%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestStatusValidity(t *testing.T) {
	if !LoanOverdue.Valid() || LoanStatus("LOST").Valid() {
		t.Error("LoanStatus.Valid misclassifies")
	}
	if !ReservationExpired.Valid() || ReservationStatus("QUEUED").Valid() {
		t.Error("ReservationStatus.Valid misclassifies")
	}
	if !MemberTeacher.Valid() || MemberType("ALUMNI").Valid() {
		t.Error("MemberType.Valid misclassifies")
	}
	if !UserSuspended.Valid() || UserStatus("BANNED").Valid() {
		t.Error("UserStatus.Valid misclassifies")
	}
}
