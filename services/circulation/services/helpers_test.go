// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stacksys/circ/pkg/config"
	"github.com/stacksys/circ/services/circulation/datatypes"
	"github.com/stacksys/circ/services/circulation/notify"
)

// newTestDB opens a per-test in-memory sqlite database with the full schema
// migrated. The shared-cache DSN keeps the database alive across the pooled
// connections gorm opens.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(datatypes.AllModels()...))
	return db
}

func testPolicy() *Policy {
	return NewPolicy(config.Default().Circulation)
}

// recordingSink captures published events for assertions.
type recordingSink struct {
	events []notify.Event
}

func (r *recordingSink) Publish(evt notify.Event) {
	r.events = append(r.events, evt)
}

func (r *recordingSink) ofType(t notify.EventType) []notify.Event {
	var out []notify.Event
	for _, evt := range r.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

func seedUser(t *testing.T, db *gorm.DB, email string, userType datatypes.MemberType) *datatypes.User {
	t.Helper()
	user := &datatypes.User{
		Name:     "Test Member",
		Email:    email,
		Password: "not-a-real-hash",
		UserType: userType,
		Status:   datatypes.UserActive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedBook(t *testing.T, db *gorm.DB, title string, total, available int) *datatypes.Book {
	t.Helper()
	book := &datatypes.Book{
		Title:           title,
		Author:          "Test Author",
		TotalCopies:     total,
		AvailableCopies: available,
		Status:          datatypes.BookAvailable,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

// backdateLoan forces a loan's due date into the past, bypassing the
// future-date validation on the create path.
func backdateLoan(t *testing.T, db *gorm.DB, loanID uint, dueDate time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&datatypes.Loan{}).
		Where("id = ?", loanID).
		UpdateColumn("due_date", dueDate).Error)
}

func availableCopies(t *testing.T, db *gorm.DB, bookID uint) int {
	t.Helper()
	var book datatypes.Book
	require.NoError(t, db.First(&book, bookID).Error)
	return book.AvailableCopies
}

func userFines(t *testing.T, db *gorm.DB, userID uint) float64 {
	t.Helper()
	var user datatypes.User
	require.NoError(t, db.First(&user, userID).Error)
	return user.Fines
}

func timeNowPlusDays(days int) time.Time {
	return time.Now().Add(time.Duration(days) * 24 * time.Hour)
}

func ctx() context.Context { return context.Background() }
