// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksys/circ/services/circulation/datatypes"
	"github.com/stacksys/circ/services/circulation/notify"
)

func TestLoanCheckoutDecrementsAvailability(t *testing.T) {
	db := newTestDB(t)
	sink := &recordingSink{}
	svc := NewLoanService(db, testPolicy(), sink, nil)
	user := seedUser(t, db, "borrower@example.com", datatypes.MemberTeacher)
	book := seedBook(t, db, "Checked Out", 3, 3)

	loan, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)
	assert.Equal(t, datatypes.LoanActive, loan.Status)
	assert.Equal(t, 2, availableCopies(t, db, book.ID))
	assert.WithinDuration(t, time.Now().Add(14*24*time.Hour), loan.DueDate, time.Minute)
	assert.Len(t, sink.ofType(notify.EventLoanCreated), 1)
	require.NotNil(t, loan.User)
	assert.Empty(t, loan.User.Password)
}

func TestLoanCheckoutPreconditions(t *testing.T) {
	db := newTestDB(t)
	svc := NewLoanService(db, testPolicy(), nil, nil)
	user := seedUser(t, db, "rules@example.com", datatypes.MemberPublic)
	book := seedBook(t, db, "Scarce", 1, 1)

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: 9999, BookID: book.ID})
		require.ErrorIs(t, err, datatypes.ErrNotFound)
	})

	t.Run("inactive user", func(t *testing.T) {
		suspended := seedUser(t, db, "suspended@example.com", datatypes.MemberPublic)
		require.NoError(t, db.Model(suspended).Update("status", datatypes.UserSuspended).Error)
		_, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: suspended.ID, BookID: book.ID})
		require.ErrorIs(t, err, datatypes.ErrInvalid)
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: 9999})
		require.ErrorIs(t, err, datatypes.ErrNotFound)
	})

	t.Run("no copies", func(t *testing.T) {
		empty := seedBook(t, db, "All Out", 1, 0)
		_, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: empty.ID})
		require.ErrorIs(t, err, datatypes.ErrConflict)
	})

	t.Run("duplicate loan", func(t *testing.T) {
		_, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: book.ID})
		require.NoError(t, err)
		_, err = svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: book.ID})
		require.ErrorIs(t, err, datatypes.ErrConflict)
	})

	t.Run("past due date", func(t *testing.T) {
		other := seedBook(t, db, "Dated", 1, 1)
		yesterday := time.Now().Add(-24 * time.Hour)
		_, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{
			UserID: user.ID, BookID: other.ID, DueDate: &yesterday,
		})
		require.ErrorIs(t, err, datatypes.ErrInvalid)
	})
}

func TestLoanCapPerMemberType(t *testing.T) {
	db := newTestDB(t)
	svc := NewLoanService(db, testPolicy(), nil, nil)
	// PUBLIC cap is 2.
	user := seedUser(t, db, "capped@example.com", datatypes.MemberPublic)

	for i := 0; i < 2; i++ {
		book := seedBook(t, db, "Vol", 1, 1)
		_, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: book.ID})
		require.NoError(t, err)
	}

	extra := seedBook(t, db, "One Too Many", 1, 1)
	_, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: extra.ID})
	require.ErrorIs(t, err, datatypes.ErrConflict)
	assert.Contains(t, err.Error(), "maximum loan limit of 2")
}

func TestLoanReturnOnTime(t *testing.T) {
	db := newTestDB(t)
	svc := NewLoanService(db, testPolicy(), nil, nil)
	user := seedUser(t, db, "punctual@example.com", datatypes.MemberPublic)
	book := seedBook(t, db, "Round Trip", 3, 3)

	loan, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, availableCopies(t, db, book.ID))

	returned, err := svc.Return(ctx(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.LoanReturned, returned.Status)
	assert.NotNil(t, returned.ReturnDate)
	assert.Zero(t, returned.Fine)
	assert.Equal(t, 3, availableCopies(t, db, book.ID))
	assert.Zero(t, userFines(t, db, user.ID))
}

func TestLoanReturnLateChargesFine(t *testing.T) {
	db := newTestDB(t)
	sink := &recordingSink{}
	svc := NewLoanService(db, testPolicy(), sink, nil)
	user := seedUser(t, db, "late@example.com", datatypes.MemberPublic)
	book := seedBook(t, db, "Overheld", 1, 1)

	loan, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	// Due 50 hours ago: ceil(50/24) = 3 days late at 1.0/day.
	backdateLoan(t, db, loan.ID, time.Now().Add(-50*time.Hour))

	returned, err := svc.Return(ctx(), loan.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, returned.Fine, 1e-9)
	assert.InDelta(t, 3.0, userFines(t, db, user.ID), 1e-9)
	assert.Equal(t, 1, availableCopies(t, db, book.ID))
	assert.Len(t, sink.ofType(notify.EventLoanReturned), 1)
}

func TestLoanReturnRejectsWrongStates(t *testing.T) {
	db := newTestDB(t)
	svc := NewLoanService(db, testPolicy(), nil, nil)
	user := seedUser(t, db, "twice@example.com", datatypes.MemberPublic)
	book := seedBook(t, db, "Once Only", 1, 1)

	loan, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	_, err = svc.Return(ctx(), loan.ID)
	require.NoError(t, err)

	// Double return is a conflict, and the copy count is not bumped again.
	_, err = svc.Return(ctx(), loan.ID)
	require.ErrorIs(t, err, datatypes.ErrConflict)
	assert.Equal(t, 1, availableCopies(t, db, book.ID))

	require.NoError(t, db.Model(&datatypes.Loan{}).
		Where("id = ?", loan.ID).
		Update("status", datatypes.LoanCancelled).Error)
	_, err = svc.Return(ctx(), loan.ID)
	require.ErrorIs(t, err, datatypes.ErrInvalid)
}

func TestLoanRenew(t *testing.T) {
	db := newTestDB(t)
	svc := NewLoanService(db, testPolicy(), nil, nil)
	user := seedUser(t, db, "renewer@example.com", datatypes.MemberPublic)
	book := seedBook(t, db, "Extended", 1, 1)

	loan, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)
	originalDue := loan.DueDate

	renewed, err := svc.Renew(ctx(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed.RenewalCount)
	assert.WithinDuration(t, originalDue.Add(14*24*time.Hour), renewed.DueDate, time.Second)

	_, err = svc.Renew(ctx(), loan.ID)
	require.NoError(t, err)

	// MAX_RENEWALS is 2.
	_, err = svc.Renew(ctx(), loan.ID)
	require.ErrorIs(t, err, datatypes.ErrConflict)
}

func TestLoanRenewBlockedByPendingReservation(t *testing.T) {
	db := newTestDB(t)
	svc := NewLoanService(db, testPolicy(), nil, nil)
	borrower := seedUser(t, db, "holder@example.com", datatypes.MemberPublic)
	waiter := seedUser(t, db, "waiter@example.com", datatypes.MemberPublic)
	book := seedBook(t, db, "In Demand", 1, 1)

	loan, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: borrower.ID, BookID: book.ID})
	require.NoError(t, err)

	require.NoError(t, db.Create(&datatypes.Reservation{
		UserID: waiter.ID, BookID: book.ID,
		ExpirationDate: timeNowPlusDays(7), Status: datatypes.ReservationActive,
	}).Error)

	_, err = svc.Renew(ctx(), loan.ID)
	require.ErrorIs(t, err, datatypes.ErrConflict)
	assert.Contains(t, err.Error(), "pending reservations")
}

func TestLoanRenewOnlyActive(t *testing.T) {
	db := newTestDB(t)
	svc := NewLoanService(db, testPolicy(), nil, nil)
	user := seedUser(t, db, "nonactive@example.com", datatypes.MemberPublic)
	book := seedBook(t, db, "Stale", 1, 1)

	loan, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)
	require.NoError(t, db.Model(&datatypes.Loan{}).
		Where("id = ?", loan.ID).
		Update("status", datatypes.LoanOverdue).Error)

	_, err = svc.Renew(ctx(), loan.ID)
	require.ErrorIs(t, err, datatypes.ErrInvalid)
}

func TestSweepOverdueIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	sink := &recordingSink{}
	svc := NewLoanService(db, testPolicy(), sink, nil)
	user := seedUser(t, db, "sweepme@example.com", datatypes.MemberTeacher)

	pastDue := seedBook(t, db, "Past Due", 1, 1)
	onTime := seedBook(t, db, "On Time", 1, 1)

	lateLoan, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: pastDue.ID})
	require.NoError(t, err)
	backdateLoan(t, db, lateLoan.ID, time.Now().Add(-time.Hour))

	_, err = svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: onTime.ID})
	require.NoError(t, err)

	result, err := svc.SweepOverdue(ctx())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Updated)
	assert.Len(t, sink.ofType(notify.EventLoanOverdue), 1)

	swept, err := svc.Get(ctx(), lateLoan.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.LoanOverdue, swept.Status)

	// Second sweep finds nothing new.
	result, err = svc.SweepOverdue(ctx())
	require.NoError(t, err)
	assert.Zero(t, result.Updated)
}

func TestLoanListSearchJoins(t *testing.T) {
	db := newTestDB(t)
	svc := NewLoanService(db, testPolicy(), nil, nil)
	user := seedUser(t, db, "searchable@example.com", datatypes.MemberPublic)
	book := seedBook(t, db, "Unmistakable Title", 1, 1)

	_, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	page, err := svc.List(ctx(), &datatypes.PageQuery{Search: "unmistakable"})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Meta.Total)
	require.NotNil(t, page.Data[0].User)
	assert.Empty(t, page.Data[0].User.Password)

	none, err := svc.List(ctx(), &datatypes.PageQuery{Search: "no-such-thing"})
	require.NoError(t, err)
	assert.Zero(t, none.Meta.Total)
	assert.NotNil(t, none.Data)
}

func TestLoanStatistics(t *testing.T) {
	db := newTestDB(t)
	svc := NewLoanService(db, testPolicy(), nil, nil)
	user := seedUser(t, db, "stats2@example.com", datatypes.MemberTeacher)

	active := seedBook(t, db, "Active", 1, 1)
	late := seedBook(t, db, "Late", 1, 1)

	_, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: active.ID})
	require.NoError(t, err)

	lateLoan, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: late.ID})
	require.NoError(t, err)
	backdateLoan(t, db, lateLoan.ID, time.Now().Add(-50*time.Hour))
	_, err = svc.Return(ctx(), lateLoan.ID)
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalLoans)
	assert.Equal(t, int64(1), stats.ActiveLoans)
	assert.Equal(t, int64(1), stats.ReturnedLoans)
	assert.InDelta(t, 3.0, stats.TotalFines, 1e-9)
}

func TestNotifyDueSoonWindow(t *testing.T) {
	db := newTestDB(t)
	sink := &recordingSink{}
	svc := NewLoanService(db, testPolicy(), sink, nil)
	user := seedUser(t, db, "reminded@example.com", datatypes.MemberTeacher)

	soon := seedBook(t, db, "Due Tomorrow", 1, 1)
	later := seedBook(t, db, "Due Next Week", 1, 1)
	past := seedBook(t, db, "Already Late", 1, 1)

	soonLoan, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: soon.ID})
	require.NoError(t, err)
	backdateLoan(t, db, soonLoan.ID, time.Now().Add(10*time.Hour))

	_, err = svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: later.ID})
	require.NoError(t, err)

	pastLoan, err := svc.Create(ctx(), &datatypes.CreateLoanRequest{UserID: user.ID, BookID: past.ID})
	require.NoError(t, err)
	backdateLoan(t, db, pastLoan.ID, time.Now().Add(-time.Hour))

	// Only the loan inside the window gets a reminder: the week-out loan is
	// too far away and the past-due one belongs to the overdue sweep.
	n, err := svc.NotifyDueSoon(ctx(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events := sink.ofType(notify.EventLoanDueSoon)
	require.Len(t, events, 1)
	assert.Equal(t, user.ID, events[0].UserID)
}
