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
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/stacksys/circ/services/circulation/datatypes"
	"github.com/stacksys/circ/services/circulation/notify"
)

// reservationSortColumns is the ORDER BY allowlist for reservation listings.
var reservationSortColumns = []string{
	"reservation_date", "expiration_date", "status", "created_at",
}

// ReservationService is the reservation lifecycle engine.
//
// # Description
//
// Reservations are claims on a book, not holds on a copy: creating or
// fulfilling one never changes the book's available-copy counter. A
// reservation on a book with a free copy is fulfilled immediately; one on a
// fully-loaned book queues as ACTIVE, ordered by reservation date, and the
// promotion sweep fulfills the head of each book's queue as copies return.
// The queue expires: ACTIVE reservations past their expiration date are
// swept to EXPIRED.
type ReservationService struct {
	db     *gorm.DB
	policy *Policy
	sink   EventSink
	log    *slog.Logger
}

// NewReservationService builds the engine. sink may be nil.
func NewReservationService(db *gorm.DB, policy *Policy, sink EventSink, log *slog.Logger) *ReservationService {
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &ReservationService{db: db, policy: policy, sink: sink, log: log}
}

// Create reserves a book for a member. Preconditions, in order: the member
// exists and is ACTIVE; the book exists; the member holds no other active
// reservation on this book; the member holds no active loan on this book;
// the member is under their type's reservation cap. Initial status is
// FULFILLED when a copy is free right now, ACTIVE otherwise.
func (s *ReservationService) Create(ctx context.Context, req *datatypes.CreateReservationRequest) (*datatypes.Reservation, error) {
	var user datatypes.User
	if err := s.db.WithContext(ctx).First(&user, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("user with ID %d", req.UserID)
		}
		return nil, err
	}
	if user.Status != datatypes.UserActive {
		return nil, datatypes.Invalidf("user is not active and cannot make reservations")
	}

	var book datatypes.Book
	if err := s.db.WithContext(ctx).First(&book, req.BookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("book with ID %d", req.BookID)
		}
		return nil, err
	}

	var existingReservation int64
	if err := s.db.WithContext(ctx).Model(&datatypes.Reservation{}).
		Where("user_id = ? AND book_id = ? AND status = ?", req.UserID, req.BookID, datatypes.ReservationActive).
		Count(&existingReservation).Error; err != nil {
		return nil, err
	}
	if existingReservation > 0 {
		return nil, datatypes.Conflictf("user already has an active reservation for this book")
	}

	var existingLoan int64
	if err := s.db.WithContext(ctx).Model(&datatypes.Loan{}).
		Where("user_id = ? AND book_id = ? AND status IN ?", req.UserID, req.BookID, activeLoanStatuses).
		Count(&existingLoan).Error; err != nil {
		return nil, err
	}
	if existingLoan > 0 {
		return nil, datatypes.Conflictf("user already has an active loan for this book")
	}

	var activeCount int64
	if err := s.db.WithContext(ctx).Model(&datatypes.Reservation{}).
		Where("user_id = ? AND status = ?", req.UserID, datatypes.ReservationActive).
		Count(&activeCount).Error; err != nil {
		return nil, err
	}
	maxReservations := s.policy.MaxReservations(user.UserType)
	if activeCount >= int64(maxReservations) {
		return nil, datatypes.Conflictf("user has reached the maximum reservation limit of %d books", maxReservations)
	}

	expiration := time.Now().Add(s.policy.ReservationPeriod())
	if req.ExpirationDate != nil {
		if req.ExpirationDate.Before(time.Now()) {
			return nil, datatypes.Invalidf("expiration date must be in the future")
		}
		expiration = *req.ExpirationDate
	}

	status := datatypes.ReservationActive
	if book.AvailableCopies > 0 {
		status = datatypes.ReservationFulfilled
	}

	reservation := &datatypes.Reservation{
		UserID:         req.UserID,
		BookID:         req.BookID,
		ExpirationDate: expiration,
		Status:         status,
	}
	if err := s.db.WithContext(ctx).Create(reservation).Error; err != nil {
		return nil, fmt.Errorf("creating reservation: %w", err)
	}

	s.log.Info("reservation created",
		"reservation_id", reservation.ID,
		"user_id", reservation.UserID,
		"book_id", reservation.BookID,
		"status", string(reservation.Status))
	if status == datatypes.ReservationFulfilled {
		s.sink.Publish(notify.NewEvent(notify.EventReservationReady, reservation.UserID, map[string]any{
			"reservationId": reservation.ID,
			"bookId":        reservation.BookID,
		}))
	}
	return s.Get(ctx, reservation.ID)
}

// Get loads one reservation with its member and book.
func (s *ReservationService) Get(ctx context.Context, id uint) (*datatypes.Reservation, error) {
	var reservation datatypes.Reservation
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Book").
		First(&reservation, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("reservation with ID %d", id)
		}
		return nil, err
	}
	if reservation.User != nil {
		reservation.User.Password = ""
	}
	return &reservation, nil
}

// List returns one page of reservations, optionally filtered by a free-text
// search over the member's name and email and the book's title, author, and
// ISBN.
func (s *ReservationService) List(ctx context.Context, q *datatypes.PageQuery) (*datatypes.Page[datatypes.Reservation], error) {
	q.Normalize()

	scope := s.db.WithContext(ctx).Model(&datatypes.Reservation{})
	if q.Search != "" {
		needle := "%" + strings.ToLower(q.Search) + "%"
		scope = scope.
			Joins("JOIN users ON users.id = reservations.user_id").
			Joins("JOIN books ON books.id = reservations.book_id").
			Where(
				"LOWER(users.name) LIKE ? OR LOWER(users.email) LIKE ? OR LOWER(books.title) LIKE ? OR LOWER(books.author) LIKE ? OR LOWER(books.isbn) LIKE ?",
				needle, needle, needle, needle, needle,
			)
	}

	orderBy, err := orderClause(q, "created_at", reservationSortColumns)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, err
	}

	var reservations []datatypes.Reservation
	if err := scope.Order("reservations." + orderBy).
		Limit(q.Limit).Offset(q.Offset()).
		Preload("User").Preload("Book").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	for i := range reservations {
		if reservations[i].User != nil {
			reservations[i].User.Password = ""
		}
	}
	return datatypes.NewPage(reservations, total, q), nil
}

// ListByUser returns one page of a member's reservations.
func (s *ReservationService) ListByUser(ctx context.Context, userID uint, q *datatypes.PageQuery) (*datatypes.Page[datatypes.Reservation], error) {
	q.Normalize()

	scope := s.db.WithContext(ctx).Model(&datatypes.Reservation{}).Where("user_id = ?", userID)

	orderBy, err := orderClause(q, "created_at", reservationSortColumns)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, err
	}

	var reservations []datatypes.Reservation
	if err := scope.Order(orderBy).
		Limit(q.Limit).Offset(q.Offset()).
		Preload("Book").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return datatypes.NewPage(reservations, total, q), nil
}

// Cancel moves an ACTIVE reservation to CANCELLED. Already-cancelled is a
// conflict; a fulfilled reservation is a terminal success and cannot be
// cancelled.
func (s *ReservationService) Cancel(ctx context.Context, id uint) (*datatypes.Reservation, error) {
	reservation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if reservation.Status == datatypes.ReservationCancelled {
		return nil, datatypes.Conflictf("reservation has already been cancelled")
	}
	if !reservation.Status.CanTransition(datatypes.ReservationCancelled) {
		return nil, datatypes.Invalidf("cannot cancel a fulfilled reservation")
	}

	err = s.db.WithContext(ctx).Model(&datatypes.Reservation{}).
		Where("id = ?", id).
		Update("status", datatypes.ReservationCancelled).Error
	if err != nil {
		return nil, err
	}

	s.log.Info("reservation cancelled", "reservation_id", id, "user_id", reservation.UserID)
	return s.Get(ctx, id)
}

// Fulfill moves an ACTIVE reservation to FULFILLED, e.g. when staff hand
// the copy over at the desk.
func (s *ReservationService) Fulfill(ctx context.Context, id uint) (*datatypes.Reservation, error) {
	reservation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !reservation.Status.CanTransition(datatypes.ReservationFulfilled) {
		return nil, datatypes.Invalidf("only active reservations can be fulfilled")
	}

	err = s.db.WithContext(ctx).Model(&datatypes.Reservation{}).
		Where("id = ?", id).
		Update("status", datatypes.ReservationFulfilled).Error
	if err != nil {
		return nil, err
	}

	s.sink.Publish(notify.NewEvent(notify.EventReservationReady, reservation.UserID, map[string]any{
		"reservationId": id,
		"bookId":        reservation.BookID,
	}))
	return s.Get(ctx, id)
}

// Expired lists every ACTIVE reservation past its expiration date.
func (s *ReservationService) Expired(ctx context.Context) ([]datatypes.Reservation, error) {
	var reservations []datatypes.Reservation
	err := s.db.WithContext(ctx).
		Where("expiration_date < ? AND status = ?", time.Now(), datatypes.ReservationActive).
		Preload("User").
		Preload("Book").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	for i := range reservations {
		if reservations[i].User != nil {
			reservations[i].User.Password = ""
		}
	}
	return reservations, nil
}

// SweepExpired marks every ACTIVE reservation past its expiration date
// EXPIRED in one batch UPDATE. Idempotent.
func (s *ReservationService) SweepExpired(ctx context.Context) (*datatypes.SweepResult, error) {
	now := time.Now()

	var affected []datatypes.Reservation
	if err := s.db.WithContext(ctx).
		Where("expiration_date < ? AND status = ?", now, datatypes.ReservationActive).
		Find(&affected).Error; err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&datatypes.Reservation{}).
		Where("expiration_date < ? AND status = ?", now, datatypes.ReservationActive).
		Update("status", datatypes.ReservationExpired)
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected > 0 {
		s.log.Info("expired reservation sweep completed", "updated", res.RowsAffected)
	}
	for _, r := range affected {
		s.sink.Publish(notify.NewEvent(notify.EventReservationExpired, r.UserID, map[string]any{
			"reservationId": r.ID,
			"bookId":        r.BookID,
		}))
	}
	return &datatypes.SweepResult{Updated: res.RowsAffected}, nil
}

// SweepPromotions fulfills queued reservations for books that have free
// copies again. Per book, the ACTIVE queue is ordered by reservation date
// (ties broken by ID) and the first available-copies entries are promoted.
// Promotion notifies the member that the copy is ready; it does not hold
// the copy, so the counter is untouched until the member actually borrows.
func (s *ReservationService) SweepPromotions(ctx context.Context) (*datatypes.SweepResult, error) {
	var books []datatypes.Book
	err := s.db.WithContext(ctx).
		Where("available_copies > 0").
		Where("id IN (?)", s.db.Model(&datatypes.Reservation{}).
			Select("book_id").
			Where("status = ?", datatypes.ReservationActive)).
		Find(&books).Error
	if err != nil {
		return nil, err
	}

	var promoted []datatypes.Reservation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, book := range books {
			var queue []datatypes.Reservation
			if err := tx.
				Where("book_id = ? AND status = ?", book.ID, datatypes.ReservationActive).
				Order("reservation_date ASC, id ASC").
				Limit(book.AvailableCopies).
				Find(&queue).Error; err != nil {
				return err
			}
			for _, r := range queue {
				if err := tx.Model(&datatypes.Reservation{}).
					Where("id = ? AND status = ?", r.ID, datatypes.ReservationActive).
					Update("status", datatypes.ReservationFulfilled).Error; err != nil {
					return err
				}
				promoted = append(promoted, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(promoted) > 0 {
		s.log.Info("reservation promotion sweep completed", "updated", len(promoted))
	}
	for _, r := range promoted {
		s.sink.Publish(notify.NewEvent(notify.EventReservationReady, r.UserID, map[string]any{
			"reservationId": r.ID,
			"bookId":        r.BookID,
		}))
	}
	return &datatypes.SweepResult{Updated: int64(len(promoted))}, nil
}

// Statistics aggregates reservation counts per status, concurrently.
func (s *ReservationService) Statistics(ctx context.Context) (*datatypes.ReservationStatistics, error) {
	stats := &datatypes.ReservationStatistics{}
	g, gctx := errgroup.WithContext(ctx)

	count := func(dest *int64, status datatypes.ReservationStatus) func() error {
		return func() error {
			q := s.db.WithContext(gctx).Model(&datatypes.Reservation{})
			if status != "" {
				q = q.Where("status = ?", status)
			}
			return q.Count(dest).Error
		}
	}

	g.Go(count(&stats.TotalReservations, ""))
	g.Go(count(&stats.ActiveReservations, datatypes.ReservationActive))
	g.Go(count(&stats.FulfilledReservations, datatypes.ReservationFulfilled))
	g.Go(count(&stats.CancelledReservations, datatypes.ReservationCancelled))
	g.Go(count(&stats.ExpiredReservations, datatypes.ReservationExpired))

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
