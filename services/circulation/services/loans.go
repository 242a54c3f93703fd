// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/stacksys/circ/services/circulation/datatypes"
	"github.com/stacksys/circ/services/circulation/notify"
)

// loanSortColumns is the ORDER BY allowlist for loan listings.
var loanSortColumns = []string{
	"loan_date", "due_date", "return_date", "status", "fine", "created_at",
}

// activeLoanStatuses are the states that count against borrowing caps and
// block duplicate loans.
var activeLoanStatuses = []datatypes.LoanStatus{datatypes.LoanActive, datatypes.LoanOverdue}

// LoanService is the loan lifecycle engine.
//
// # Description
//
// Owns every loan state transition: checkout, renewal, return, and the
// batch sweep that marks past-due loans OVERDUE. Checkout and return couple
// the loan row to the book's available-copy counter inside one transaction;
// a late return additionally posts the fine to the member in that same
// transaction.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The copy counter and fine
// balance are mutated only through conditional single-statement updates, so
// concurrent checkouts of the last copy resolve to exactly one winner.
type LoanService struct {
	db     *gorm.DB
	policy *Policy
	sink   EventSink
	log    *slog.Logger
}

// NewLoanService builds the engine. sink may be nil.
func NewLoanService(db *gorm.DB, policy *Policy, sink EventSink, log *slog.Logger) *LoanService {
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &LoanService{db: db, policy: policy, sink: sink, log: log}
}

// Create checks a book out to a member. Preconditions, in order: the member
// exists and is ACTIVE; the book exists with a free copy; the member holds
// no active or overdue loan on this book; the member is under their type's
// loan cap. The loan insert and the copy decrement commit together, and the
// decrement re-checks availability so two checkouts of the last copy cannot
// both succeed.
func (s *LoanService) Create(ctx context.Context, req *datatypes.CreateLoanRequest) (*datatypes.Loan, error) {
	var user datatypes.User
	if err := s.db.WithContext(ctx).First(&user, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("user with ID %d", req.UserID)
		}
		return nil, err
	}
	if user.Status != datatypes.UserActive {
		return nil, datatypes.Invalidf("user is not active and cannot borrow books")
	}

	var book datatypes.Book
	if err := s.db.WithContext(ctx).First(&book, req.BookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("book with ID %d", req.BookID)
		}
		return nil, err
	}
	if book.AvailableCopies <= 0 {
		return nil, datatypes.Conflictf("book is not available for loan")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&datatypes.Loan{}).
		Where("user_id = ? AND book_id = ? AND status IN ?", req.UserID, req.BookID, activeLoanStatuses).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, datatypes.Conflictf("user already has an active loan for this book")
	}

	var activeCount int64
	if err := s.db.WithContext(ctx).Model(&datatypes.Loan{}).
		Where("user_id = ? AND status IN ?", req.UserID, activeLoanStatuses).
		Count(&activeCount).Error; err != nil {
		return nil, err
	}
	maxLoans := s.policy.MaxLoans(user.UserType)
	if activeCount >= int64(maxLoans) {
		return nil, datatypes.Conflictf("user has reached the maximum loan limit of %d books", maxLoans)
	}

	dueDate := time.Now().Add(s.policy.LoanPeriod())
	if req.DueDate != nil {
		if req.DueDate.Before(time.Now()) {
			return nil, datatypes.Invalidf("due date must be in the future")
		}
		dueDate = *req.DueDate
	}

	loan := &datatypes.Loan{
		UserID:  req.UserID,
		BookID:  req.BookID,
		DueDate: dueDate,
		Status:  datatypes.LoanActive,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(loan).Error; err != nil {
			return fmt.Errorf("creating loan: %w", err)
		}
		return adjustAvailableCopies(tx, req.BookID, -1)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("loan created",
		"loan_id", loan.ID,
		"user_id", loan.UserID,
		"book_id", loan.BookID,
		"due_date", loan.DueDate)
	s.sink.Publish(notify.NewEvent(notify.EventLoanCreated, loan.UserID, loan))

	return s.Get(ctx, loan.ID)
}

// Get loads one loan with its member and book.
func (s *LoanService) Get(ctx context.Context, id uint) (*datatypes.Loan, error) {
	var loan datatypes.Loan
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Book").
		First(&loan, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("loan with ID %d", id)
		}
		return nil, err
	}
	if loan.User != nil {
		loan.User.Password = ""
	}
	return &loan, nil
}

// List returns one page of loans, optionally filtered by a free-text search
// over the borrower's name and email and the book's title, author, and ISBN.
func (s *LoanService) List(ctx context.Context, q *datatypes.PageQuery) (*datatypes.Page[datatypes.Loan], error) {
	q.Normalize()

	scope := s.db.WithContext(ctx).Model(&datatypes.Loan{})
	if q.Search != "" {
		needle := "%" + strings.ToLower(q.Search) + "%"
		scope = scope.
			Joins("JOIN users ON users.id = loans.user_id").
			Joins("JOIN books ON books.id = loans.book_id").
			Where(
				"LOWER(users.name) LIKE ? OR LOWER(users.email) LIKE ? OR LOWER(books.title) LIKE ? OR LOWER(books.author) LIKE ? OR LOWER(books.isbn) LIKE ?",
				needle, needle, needle, needle, needle,
			)
	}

	orderBy, err := orderClause(q, "created_at", loanSortColumns)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, err
	}

	var loans []datatypes.Loan
	if err := scope.Order("loans." + orderBy).
		Limit(q.Limit).Offset(q.Offset()).
		Preload("User").Preload("Book").
		Find(&loans).Error; err != nil {
		return nil, err
	}
	scrubLoanPasswords(loans)
	return datatypes.NewPage(loans, total, q), nil
}

// ListByUser returns one page of a member's loans.
func (s *LoanService) ListByUser(ctx context.Context, userID uint, q *datatypes.PageQuery) (*datatypes.Page[datatypes.Loan], error) {
	q.Normalize()

	scope := s.db.WithContext(ctx).Model(&datatypes.Loan{}).Where("user_id = ?", userID)

	orderBy, err := orderClause(q, "created_at", loanSortColumns)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, err
	}

	var loans []datatypes.Loan
	if err := scope.Order(orderBy).
		Limit(q.Limit).Offset(q.Offset()).
		Preload("Book").
		Find(&loans).Error; err != nil {
		return nil, err
	}
	return datatypes.NewPage(loans, total, q), nil
}

// Overdue lists every ACTIVE loan past its due date, with member and book.
func (s *LoanService) Overdue(ctx context.Context) ([]datatypes.Loan, error) {
	var loans []datatypes.Loan
	err := s.db.WithContext(ctx).
		Where("due_date < ? AND status = ?", time.Now(), datatypes.LoanActive).
		Preload("User").
		Preload("Book").
		Find(&loans).Error
	if err != nil {
		return nil, err
	}
	scrubLoanPasswords(loans)
	return loans, nil
}

// Return closes a loan. The fine, when the return is late, is
// ceil(days late) times the per-day rate, computed at return time. Status
// transition, copy increment, and fine posting are one transaction.
func (s *LoanService) Return(ctx context.Context, id uint) (*datatypes.Loan, error) {
	loan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if loan.Status == datatypes.LoanReturned {
		return nil, datatypes.Conflictf("book has already been returned")
	}
	if !loan.Status.CanTransition(datatypes.LoanReturned) {
		return nil, datatypes.Invalidf("only active or overdue loans can be returned")
	}

	returnDate := time.Now()
	fine := s.fineFor(loan.DueDate, returnDate)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":      datatypes.LoanReturned,
			"return_date": returnDate,
		}
		if fine > 0 {
			updates["fine"] = fine
		}
		if err := tx.Model(&datatypes.Loan{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("closing loan %d: %w", id, err)
		}
		if err := adjustAvailableCopies(tx, loan.BookID, 1); err != nil {
			return err
		}
		if fine > 0 {
			return txAddFine(tx, loan.UserID, fine)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("loan returned",
		"loan_id", id,
		"user_id", loan.UserID,
		"book_id", loan.BookID,
		"fine", fine)
	s.sink.Publish(notify.NewEvent(notify.EventLoanReturned, loan.UserID, map[string]any{
		"loanId": id,
		"bookId": loan.BookID,
		"fine":   fine,
	}))

	return s.Get(ctx, id)
}

// Renew extends an ACTIVE loan's due date by one loan period. Blocked by the
// renewal cap and by any pending reservation on the book, which takes
// priority over the current holder.
func (s *LoanService) Renew(ctx context.Context, id uint) (*datatypes.Loan, error) {
	loan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if loan.Status != datatypes.LoanActive {
		return nil, datatypes.Invalidf("only active loans can be renewed")
	}
	if loan.RenewalCount >= s.policy.MaxRenewals {
		return nil, datatypes.Conflictf("loan has reached maximum renewal limit")
	}

	var pending int64
	if err := s.db.WithContext(ctx).Model(&datatypes.Reservation{}).
		Where("book_id = ? AND status = ?", loan.BookID, datatypes.ReservationActive).
		Count(&pending).Error; err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, datatypes.Conflictf("cannot renew loan as there are pending reservations for this book")
	}

	newDueDate := loan.DueDate.Add(s.policy.LoanPeriod())
	err = s.db.WithContext(ctx).Model(&datatypes.Loan{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"due_date":      newDueDate,
			"renewal_count": loan.RenewalCount + 1,
		}).Error
	if err != nil {
		return nil, err
	}

	s.log.Info("loan renewed",
		"loan_id", id,
		"due_date", newDueDate,
		"renewal_count", loan.RenewalCount+1)
	return s.Get(ctx, id)
}

// SweepOverdue marks every past-due ACTIVE loan OVERDUE in one batch UPDATE.
// Idempotent: already-OVERDUE loans don't match the predicate, so a second
// sweep reports zero. Events go out per affected member after the update
// commits.
func (s *LoanService) SweepOverdue(ctx context.Context) (*datatypes.SweepResult, error) {
	now := time.Now()

	// Snapshot the soon-to-be-overdue set first so events can name loans;
	// the UPDATE below is still the source of truth for the count.
	var affected []datatypes.Loan
	if err := s.db.WithContext(ctx).
		Where("due_date < ? AND status = ?", now, datatypes.LoanActive).
		Find(&affected).Error; err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&datatypes.Loan{}).
		Where("due_date < ? AND status = ?", now, datatypes.LoanActive).
		Update("status", datatypes.LoanOverdue)
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected > 0 {
		s.log.Info("overdue sweep completed", "updated", res.RowsAffected)
	}
	for _, loan := range affected {
		s.sink.Publish(notify.NewEvent(notify.EventLoanOverdue, loan.UserID, map[string]any{
			"loanId":  loan.ID,
			"bookId":  loan.BookID,
			"dueDate": loan.DueDate,
		}))
	}
	return &datatypes.SweepResult{Updated: res.RowsAffected}, nil
}

// NotifyDueSoon publishes a reminder for every ACTIVE loan coming due
// within the window. Read-only; run it from a daily timer alongside the
// overdue sweep. Returns the number of reminders published.
func (s *LoanService) NotifyDueSoon(ctx context.Context, within time.Duration) (int, error) {
	now := time.Now()
	var loans []datatypes.Loan
	if err := s.db.WithContext(ctx).
		Where("status = ? AND due_date > ? AND due_date <= ?", datatypes.LoanActive, now, now.Add(within)).
		Find(&loans).Error; err != nil {
		return 0, err
	}

	for _, loan := range loans {
		s.sink.Publish(notify.NewEvent(notify.EventLoanDueSoon, loan.UserID, map[string]any{
			"loanId":  loan.ID,
			"bookId":  loan.BookID,
			"dueDate": loan.DueDate,
		}))
	}
	if len(loans) > 0 {
		s.log.Info("due-soon reminders published", "count", len(loans))
	}
	return len(loans), nil
}

// Statistics aggregates loan counts and the sum of assessed fines. The five
// counts run concurrently against the pool.
func (s *LoanService) Statistics(ctx context.Context) (*datatypes.LoanStatistics, error) {
	stats := &datatypes.LoanStatistics{}
	g, gctx := errgroup.WithContext(ctx)

	count := func(dest *int64, conds ...any) func() error {
		return func() error {
			q := s.db.WithContext(gctx).Model(&datatypes.Loan{})
			if len(conds) > 0 {
				q = q.Where(conds[0], conds[1:]...)
			}
			return q.Count(dest).Error
		}
	}

	g.Go(count(&stats.TotalLoans))
	g.Go(count(&stats.ActiveLoans, "status = ?", datatypes.LoanActive))
	g.Go(count(&stats.OverdueLoans, "status = ?", datatypes.LoanOverdue))
	g.Go(count(&stats.ReturnedLoans, "status = ?", datatypes.LoanReturned))
	g.Go(func() error {
		var sum *float64
		err := s.db.WithContext(gctx).Model(&datatypes.Loan{}).
			Where("fine > 0").
			Select("SUM(fine)").
			Scan(&sum).Error
		if err != nil {
			return err
		}
		if sum != nil {
			stats.TotalFines = *sum
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// fineFor computes the late fine: ceil(days late) times the per-day rate,
// zero for an on-time return.
func (s *LoanService) fineFor(dueDate, returnDate time.Time) float64 {
	if !returnDate.After(dueDate) {
		return 0
	}
	overdueDays := math.Ceil(returnDate.Sub(dueDate).Hours() / 24)
	return overdueDays * s.policy.FinePerDay
}

func scrubLoanPasswords(loans []datatypes.Loan) {
	for i := range loans {
		if loans[i].User != nil {
			loans[i].User.Password = ""
		}
	}
}
