// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stacksys/circ/services/circulation/datatypes"
)

func TestUserCreateHashesPasswordAndLowercasesEmail(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)

	user, err := svc.Create(ctx(), &datatypes.CreateUserRequest{
		Name:     "Ada",
		Email:    "Ada@Example.COM",
		Password: "super-secret-1",
		UserType: datatypes.MemberPublic,
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("super-secret-1")))
	assert.Equal(t, datatypes.UserActive, user.Status)
}

func TestUserCreateRejectsDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	seedUser(t, db, "taken@example.com", datatypes.MemberPublic)

	_, err := svc.Create(ctx(), &datatypes.CreateUserRequest{
		Name:     "Copycat",
		Email:    "taken@example.com",
		UserType: datatypes.MemberPublic,
	})
	require.ErrorIs(t, err, datatypes.ErrConflict)
}

func TestUserCreateEnforcesStudentAge(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)

	_, err := svc.Create(ctx(), &datatypes.CreateUserRequest{
		Name:     "No Age",
		Email:    "student1@example.com",
		UserType: datatypes.MemberStudent,
	})
	require.ErrorIs(t, err, datatypes.ErrInvalid)

	three := 3
	_, err = svc.Create(ctx(), &datatypes.CreateUserRequest{
		Name:     "Too Young",
		Email:    "student2@example.com",
		Age:      &three,
		UserType: datatypes.MemberStudent,
	})
	require.ErrorIs(t, err, datatypes.ErrInvalid)

	ten := 10
	_, err = svc.Create(ctx(), &datatypes.CreateUserRequest{
		Name:     "Old Enough",
		Email:    "student3@example.com",
		Age:      &ten,
		UserType: datatypes.MemberStudent,
	})
	require.NoError(t, err)
}

func TestUserUpdateChecksMergedState(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	user := seedUser(t, db, "adult@example.com", datatypes.MemberPublic)

	// Switching to STUDENT without an age on record is rejected.
	student := datatypes.MemberStudent
	_, err := svc.Update(ctx(), user.ID, &datatypes.UpdateUserRequest{UserType: &student})
	require.ErrorIs(t, err, datatypes.ErrInvalid)

	twelve := 12
	updated, err := svc.Update(ctx(), user.ID, &datatypes.UpdateUserRequest{UserType: &student, Age: &twelve})
	require.NoError(t, err)
	assert.Equal(t, datatypes.MemberStudent, updated.UserType)
}

func TestFineLedger(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	user := seedUser(t, db, "fined@example.com", datatypes.MemberPublic)

	updated, err := svc.AddFine(ctx(), user.ID, 4.5)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, updated.Fines, 1e-9)

	updated, err = svc.PayFine(ctx(), user.ID, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, updated.Fines, 1e-9)

	// Overpaying is rejected and leaves the balance unchanged.
	_, err = svc.PayFine(ctx(), user.ID, 3.0)
	require.ErrorIs(t, err, datatypes.ErrInvalid)
	assert.InDelta(t, 2.5, userFines(t, db, user.ID), 1e-9)

	updated, err = svc.PayFine(ctx(), user.ID, 2.5)
	require.NoError(t, err)
	assert.Zero(t, updated.Fines)

	_, err = svc.PayFine(ctx(), 9999, 1.0)
	require.ErrorIs(t, err, datatypes.ErrNotFound)
}

func TestUserDeleteBlockedByObligations(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	user := seedUser(t, db, "busy@example.com", datatypes.MemberPublic)
	book := seedBook(t, db, "Held", 1, 0)

	require.NoError(t, db.Create(&datatypes.Loan{
		UserID: user.ID, BookID: book.ID,
		DueDate: timeNowPlusDays(7), Status: datatypes.LoanActive,
	}).Error)
	require.ErrorIs(t, svc.Delete(ctx(), user.ID), datatypes.ErrInvalid)

	require.NoError(t, db.Model(&datatypes.Loan{}).
		Where("user_id = ?", user.ID).
		Update("status", datatypes.LoanReturned).Error)

	_, err := svc.AddFine(ctx(), user.ID, 1.0)
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx(), user.ID), datatypes.ErrInvalid)

	_, err = svc.PayFine(ctx(), user.ID, 1.0)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx(), user.ID))
}

func TestUserStats(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	user := seedUser(t, db, "stats@example.com", datatypes.MemberPublic)
	book := seedBook(t, db, "Read Me", 2, 1)

	require.NoError(t, db.Create(&datatypes.Loan{
		UserID: user.ID, BookID: book.ID,
		DueDate: timeNowPlusDays(7), Status: datatypes.LoanActive,
	}).Error)

	stats, err := svc.Stats(ctx(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ActiveLoans)
	assert.Equal(t, int64(0), stats.OverdueLoans)
	assert.True(t, stats.CanBorrow)

	// Over the fine cap, the member can no longer borrow.
	_, err = svc.AddFine(ctx(), user.ID, maxFinesForBorrowing)
	require.NoError(t, err)
	stats, err = svc.Stats(ctx(), user.ID)
	require.NoError(t, err)
	assert.False(t, stats.CanBorrow)
}
