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
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/stacksys/circ/services/circulation/datatypes"
)

// maxFinesForBorrowing is the fine balance at or above which a member loses
// borrowing privileges.
const maxFinesForBorrowing = 10.0

// userSortColumns is the ORDER BY allowlist for member listings.
var userSortColumns = []string{
	"name", "email", "user_type", "status", "fines",
	"registration_date", "last_activity",
}

// UserService owns member records and the fine ledger. The fine balance is
// the second piece of shared mutable state in the system (after available
// copies) and gets the same treatment: every mutation is a single
// conditional UPDATE.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Create registers a member. Email must be unique; students must carry an
// age of at least 5. The password is bcrypt-hashed before storage, with a
// default applied when the admin surface omits one.
func (s *UserService) Create(ctx context.Context, req *datatypes.CreateUserRequest) (*datatypes.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := s.db.WithContext(ctx).Model(&datatypes.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, datatypes.Conflictf("user with this email already exists")
	}

	if req.UserType == datatypes.MemberStudent && (req.Age == nil || *req.Age < 5) {
		return nil, datatypes.Invalidf("students must be at least 5 years old")
	}

	password := req.Password
	if password == "" {
		password = "defaultPassword123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &datatypes.User{
		Name:     req.Name,
		Email:    email,
		Password: string(hash),
		Phone:    req.Phone,
		Address:  req.Address,
		Age:      req.Age,
		UserType: req.UserType,
		Status:   datatypes.UserActive,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// Get loads one member with their loan and reservation history, books
// preloaded, most recent first.
func (s *UserService) Get(ctx context.Context, id uint) (*datatypes.User, error) {
	var user datatypes.User
	err := s.db.WithContext(ctx).
		Preload("Loans", func(db *gorm.DB) *gorm.DB {
			return db.Order("loan_date DESC")
		}).
		Preload("Loans.Book").
		Preload("Reservations", func(db *gorm.DB) *gorm.DB {
			return db.Order("reservation_date DESC")
		}).
		Preload("Reservations.Book").
		First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("user with ID %d", id)
		}
		return nil, err
	}
	return &user, nil
}

// FindByEmail loads a member by email for authentication. The password hash
// is included; callers must not serialize the result directly.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*datatypes.User, error) {
	var user datatypes.User
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("user with email %s", email)
		}
		return nil, err
	}
	return &user, nil
}

// List returns one page of members, optionally filtered by a free-text
// search over name, email, and phone.
func (s *UserService) List(ctx context.Context, q *datatypes.PageQuery) (*datatypes.Page[datatypes.User], error) {
	q.Normalize()

	scope := s.db.WithContext(ctx).Model(&datatypes.User{})
	if q.Search != "" {
		needle := "%" + strings.ToLower(q.Search) + "%"
		scope = scope.Where(
			"LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(phone) LIKE ?",
			needle, needle, needle,
		)
	}

	orderBy, err := orderClause(q, "registration_date", userSortColumns)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, err
	}

	var users []datatypes.User
	if err := scope.Order(orderBy).Limit(q.Limit).Offset(q.Offset()).Find(&users).Error; err != nil {
		return nil, err
	}
	return datatypes.NewPage(users, total, q), nil
}

// Update applies a partial update, re-checking email uniqueness and the
// student age rule against the merged state.
func (s *UserService) Update(ctx context.Context, id uint, req *datatypes.UpdateUserRequest) (*datatypes.User, error) {
	var user datatypes.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("user with ID %d", id)
		}
		return nil, err
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != user.Email {
			var count int64
			if err := s.db.WithContext(ctx).Model(&datatypes.User{}).
				Where("email = ? AND id <> ?", email, id).Count(&count).Error; err != nil {
				return nil, err
			}
			if count > 0 {
				return nil, datatypes.Conflictf("user with this email already exists")
			}
			user.Email = email
		}
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Address != nil {
		user.Address = *req.Address
	}
	if req.Age != nil {
		user.Age = req.Age
	}
	if req.UserType != nil {
		user.UserType = *req.UserType
	}

	if user.UserType == datatypes.MemberStudent && (user.Age == nil || *user.Age < 5) {
		return nil, datatypes.Invalidf("students must be at least 5 years old")
	}

	user.LastActivity = time.Now()
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, fmt.Errorf("updating user %d: %w", id, err)
	}
	return &user, nil
}

// UpdateStatus activates, deactivates, or suspends a member.
func (s *UserService) UpdateStatus(ctx context.Context, id uint, status datatypes.UserStatus) (*datatypes.User, error) {
	if !status.Valid() {
		return nil, datatypes.Invalidf("unknown user status %q", status)
	}
	var user datatypes.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("user with ID %d", id)
		}
		return nil, err
	}
	user.Status = status
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// TouchActivity bumps the member's last-activity timestamp.
func (s *UserService) TouchActivity(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&datatypes.User{}).
		Where("id = ?", id).
		UpdateColumn("last_activity", time.Now()).Error
}

// Delete removes a member, blocked while active loans, active reservations,
// or a non-zero fine balance remain.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	var user datatypes.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return datatypes.NotFoundf("user with ID %d", id)
		}
		return err
	}

	var activeLoans int64
	if err := s.db.WithContext(ctx).Model(&datatypes.Loan{}).
		Where("user_id = ? AND status IN ?", id, []datatypes.LoanStatus{datatypes.LoanActive, datatypes.LoanOverdue}).
		Count(&activeLoans).Error; err != nil {
		return err
	}
	if activeLoans > 0 {
		return datatypes.Invalidf("cannot delete user with active loans")
	}

	var activeReservations int64
	if err := s.db.WithContext(ctx).Model(&datatypes.Reservation{}).
		Where("user_id = ? AND status = ?", id, datatypes.ReservationActive).
		Count(&activeReservations).Error; err != nil {
		return err
	}
	if activeReservations > 0 {
		return datatypes.Invalidf("cannot delete user with active reservations")
	}

	if user.Fines > 0 {
		return datatypes.Invalidf("cannot delete user with outstanding fines")
	}

	return s.db.WithContext(ctx).Delete(&datatypes.User{}, id).Error
}

// AddFine increments a member's fine balance.
func (s *UserService) AddFine(ctx context.Context, id uint, amount float64) (*datatypes.User, error) {
	if amount <= 0 {
		return nil, datatypes.Invalidf("fine amount must be positive")
	}
	if err := txAddFine(s.db.WithContext(ctx), id, amount); err != nil {
		return nil, err
	}
	return s.loadBare(ctx, id)
}

// PayFine decrements a member's fine balance, never below zero. The balance
// check and the write are one conditional UPDATE so concurrent payments
// cannot overdraw.
func (s *UserService) PayFine(ctx context.Context, id uint, amount float64) (*datatypes.User, error) {
	if amount <= 0 {
		return nil, datatypes.Invalidf("payment amount must be positive")
	}
	res := s.db.WithContext(ctx).Model(&datatypes.User{}).
		Where("id = ? AND fines >= ?", id, amount).
		UpdateColumn("fines", gorm.Expr("fines - ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&datatypes.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, datatypes.NotFoundf("user with ID %d", id)
		}
		return nil, datatypes.Invalidf("payment amount exceeds outstanding fines")
	}
	return s.loadBare(ctx, id)
}

// Stats summarizes one member's circulation state. CanBorrow is an advisory
// flag for clients: an active member under the fine cap.
func (s *UserService) Stats(ctx context.Context, id uint) (*datatypes.UserStats, error) {
	user, err := s.loadBare(ctx, id)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	stats := &datatypes.UserStats{}

	if err := db.Model(&datatypes.Loan{}).
		Where("user_id = ? AND status = ?", id, datatypes.LoanActive).
		Count(&stats.ActiveLoans).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&datatypes.Loan{}).
		Where("user_id = ? AND status IN ? AND due_date < ?",
			id, []datatypes.LoanStatus{datatypes.LoanActive, datatypes.LoanOverdue}, time.Now()).
		Count(&stats.OverdueLoans).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&datatypes.Loan{}).
		Where("user_id = ?", id).
		Count(&stats.TotalLoans).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&datatypes.Reservation{}).
		Where("user_id = ? AND status = ?", id, datatypes.ReservationActive).
		Count(&stats.ActiveReservations).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&datatypes.Reservation{}).
		Where("user_id = ?", id).
		Count(&stats.TotalReservations).Error; err != nil {
		return nil, err
	}

	stats.CanBorrow = user.Fines < maxFinesForBorrowing && user.Status == datatypes.UserActive
	return stats, nil
}

func (s *UserService) loadBare(ctx context.Context, id uint) (*datatypes.User, error) {
	var user datatypes.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("user with ID %d", id)
		}
		return nil, err
	}
	return &user, nil
}

// txAddFine is the transactional form used by the loan return path to post
// a late fine in the same transaction as the loan state change.
func txAddFine(tx *gorm.DB, id uint, amount float64) error {
	res := tx.Model(&datatypes.User{}).
		Where("id = ?", id).
		UpdateColumn("fines", gorm.Expr("fines + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return datatypes.NotFoundf("user with ID %d", id)
	}
	return nil
}
