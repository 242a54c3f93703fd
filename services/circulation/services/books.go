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

	"gorm.io/gorm"

	"github.com/stacksys/circ/pkg/validation"
	"github.com/stacksys/circ/services/circulation/datatypes"
)

// bookSortColumns is the ORDER BY allowlist for catalog listings.
var bookSortColumns = []string{
	"title", "author", "genre", "publisher", "publication_year",
	"total_copies", "available_copies", "added_date", "created_at",
}

// BookService owns the catalog. Besides CRUD it exposes the one primitive
// the lifecycle engines depend on: an atomic, bounds-checked adjustment of
// AvailableCopies.
type BookService struct {
	db *gorm.DB
}

func NewBookService(db *gorm.DB) *BookService {
	return &BookService{db: db}
}

// Create inserts a catalog record. AvailableCopies defaults to TotalCopies
// when omitted and may never exceed it.
func (s *BookService) Create(ctx context.Context, req *datatypes.CreateBookRequest) (*datatypes.Book, error) {
	book := &datatypes.Book{
		Title:           req.Title,
		Author:          req.Author,
		Genre:           req.Genre,
		PublicationYear: req.PublicationYear,
		Publisher:       req.Publisher,
		Pages:           req.Pages,
		Language:        req.Language,
		TotalCopies:     req.TotalCopies,
		Location:        req.Location,
		Description:     req.Description,
		CoverURL:        req.CoverURL,
		Status:          datatypes.BookAvailable,
	}

	if req.ISBN != nil && *req.ISBN != "" {
		isbn, err := validation.NormalizeISBN(*req.ISBN)
		if err != nil {
			return nil, datatypes.Invalidf("%v", err)
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&datatypes.Book{}).Where("isbn = ?", isbn).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, datatypes.Conflictf("book with this ISBN already exists")
		}
		book.ISBN = &isbn
	}

	if req.AvailableCopies != nil {
		if *req.AvailableCopies > req.TotalCopies {
			return nil, datatypes.Invalidf("available copies cannot exceed total copies")
		}
		book.AvailableCopies = *req.AvailableCopies
	} else {
		book.AvailableCopies = req.TotalCopies
	}

	if err := s.db.WithContext(ctx).Create(book).Error; err != nil {
		return nil, fmt.Errorf("creating book: %w", err)
	}
	return book, nil
}

// Get loads one book by ID.
func (s *BookService) Get(ctx context.Context, id uint) (*datatypes.Book, error) {
	var book datatypes.Book
	if err := s.db.WithContext(ctx).First(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("book with ID %d", id)
		}
		return nil, err
	}
	return &book, nil
}

// List returns one page of the catalog, optionally filtered by a free-text
// search over title, author, ISBN, genre, and publisher.
func (s *BookService) List(ctx context.Context, q *datatypes.PageQuery) (*datatypes.Page[datatypes.Book], error) {
	return s.list(ctx, q, s.db.WithContext(ctx).Model(&datatypes.Book{}))
}

// ListAvailable returns only books with at least one free copy.
func (s *BookService) ListAvailable(ctx context.Context, q *datatypes.PageQuery) (*datatypes.Page[datatypes.Book], error) {
	scope := s.db.WithContext(ctx).Model(&datatypes.Book{}).Where("available_copies > 0")
	return s.list(ctx, q, scope)
}

// ListByGenre filters by genre substring, case-insensitive.
func (s *BookService) ListByGenre(ctx context.Context, genre string, q *datatypes.PageQuery) (*datatypes.Page[datatypes.Book], error) {
	scope := s.db.WithContext(ctx).Model(&datatypes.Book{}).
		Where("LOWER(genre) LIKE ?", "%"+strings.ToLower(genre)+"%")
	return s.list(ctx, q, scope)
}

func (s *BookService) list(ctx context.Context, q *datatypes.PageQuery, scope *gorm.DB) (*datatypes.Page[datatypes.Book], error) {
	q.Normalize()

	if q.Search != "" {
		needle := "%" + strings.ToLower(q.Search) + "%"
		scope = scope.Where(
			"LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(isbn) LIKE ? OR LOWER(genre) LIKE ? OR LOWER(publisher) LIKE ?",
			needle, needle, needle, needle, needle,
		)
	}

	orderBy, err := orderClause(q, "added_date", bookSortColumns)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, err
	}

	var books []datatypes.Book
	if err := scope.Order(orderBy).Limit(q.Limit).Offset(q.Offset()).Find(&books).Error; err != nil {
		return nil, err
	}
	return datatypes.NewPage(books, total, q), nil
}

// Popular returns the books with the most loans, all time.
func (s *BookService) Popular(ctx context.Context, limit int) ([]datatypes.Book, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	var books []datatypes.Book
	err := s.db.WithContext(ctx).
		Model(&datatypes.Book{}).
		Joins("LEFT JOIN loans ON loans.book_id = books.id").
		Group("books.id").
		Order("COUNT(loans.id) DESC").
		Limit(limit).
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	return books, nil
}

// Update applies a partial update, re-checking ISBN uniqueness and the copy
// invariants against the merged state.
func (s *BookService) Update(ctx context.Context, id uint, req *datatypes.UpdateBookRequest) (*datatypes.Book, error) {
	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ISBN != nil && *req.ISBN != "" {
		isbn, err := validation.NormalizeISBN(*req.ISBN)
		if err != nil {
			return nil, datatypes.Invalidf("%v", err)
		}
		if book.ISBN == nil || *book.ISBN != isbn {
			var count int64
			if err := s.db.WithContext(ctx).Model(&datatypes.Book{}).
				Where("isbn = ? AND id <> ?", isbn, id).Count(&count).Error; err != nil {
				return nil, err
			}
			if count > 0 {
				return nil, datatypes.Conflictf("book with this ISBN already exists")
			}
		}
		book.ISBN = &isbn
	}

	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.Author != nil {
		book.Author = *req.Author
	}
	if req.Genre != nil {
		book.Genre = *req.Genre
	}
	if req.PublicationYear != nil {
		book.PublicationYear = req.PublicationYear
	}
	if req.Publisher != nil {
		book.Publisher = *req.Publisher
	}
	if req.Pages != nil {
		book.Pages = req.Pages
	}
	if req.Language != nil {
		book.Language = *req.Language
	}
	if req.TotalCopies != nil {
		book.TotalCopies = *req.TotalCopies
	}
	if req.AvailableCopies != nil {
		book.AvailableCopies = *req.AvailableCopies
	}
	if req.Location != nil {
		book.Location = *req.Location
	}
	if req.Description != nil {
		book.Description = *req.Description
	}
	if req.CoverURL != nil {
		book.CoverURL = *req.CoverURL
	}

	if book.TotalCopies < 1 {
		return nil, datatypes.Invalidf("total copies must be at least 1")
	}
	if book.AvailableCopies < 0 {
		return nil, datatypes.Invalidf("available copies cannot be negative")
	}
	if book.AvailableCopies > book.TotalCopies {
		return nil, datatypes.Invalidf("available copies cannot exceed total copies")
	}

	if err := s.db.WithContext(ctx).Save(book).Error; err != nil {
		return nil, fmt.Errorf("updating book %d: %w", id, err)
	}
	return book, nil
}

// Delete removes a catalog record, blocked while active loans or
// reservations reference it.
func (s *BookService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	var activeLoans int64
	if err := s.db.WithContext(ctx).Model(&datatypes.Loan{}).
		Where("book_id = ? AND status IN ?", id, []datatypes.LoanStatus{datatypes.LoanActive, datatypes.LoanOverdue}).
		Count(&activeLoans).Error; err != nil {
		return err
	}
	if activeLoans > 0 {
		return datatypes.Invalidf("cannot delete book with active loans")
	}

	var activeReservations int64
	if err := s.db.WithContext(ctx).Model(&datatypes.Reservation{}).
		Where("book_id = ? AND status = ?", id, datatypes.ReservationActive).
		Count(&activeReservations).Error; err != nil {
		return err
	}
	if activeReservations > 0 {
		return datatypes.Invalidf("cannot delete book with active reservations")
	}

	return s.db.WithContext(ctx).Delete(&datatypes.Book{}, id).Error
}

// Statistics aggregates catalog-level counts.
func (s *BookService) Statistics(ctx context.Context) (*datatypes.BookStatistics, error) {
	db := s.db.WithContext(ctx)
	stats := &datatypes.BookStatistics{}

	if err := db.Model(&datatypes.Book{}).Count(&stats.TotalBooks).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&datatypes.Book{}).Where("available_copies > 0").Count(&stats.AvailableBooks).Error; err != nil {
		return nil, err
	}
	stats.UnavailableBooks = stats.TotalBooks - stats.AvailableBooks
	if err := db.Model(&datatypes.Loan{}).Count(&stats.TotalLoans).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&datatypes.Loan{}).Where("status = ?", datatypes.LoanActive).Count(&stats.ActiveLoans).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// AdjustAvailableCopies changes a book's available copy count by delta as a
// single conditional UPDATE, so the bounds check and the write cannot be
// separated by a concurrent writer. Fails with Conflict when the adjustment
// would leave the count negative or above TotalCopies.
func (s *BookService) AdjustAvailableCopies(ctx context.Context, id uint, delta int) (*datatypes.Book, error) {
	if err := adjustAvailableCopies(s.db.WithContext(ctx), id, delta); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// adjustAvailableCopies is the transactional form used inside loan create
// and return. The WHERE clause is the correctness mechanism: zero rows
// affected means the book is gone or the adjustment would violate
// 0 <= available_copies <= total_copies.
func adjustAvailableCopies(tx *gorm.DB, id uint, delta int) error {
	res := tx.Model(&datatypes.Book{}).
		Where("id = ? AND available_copies + ? >= 0 AND available_copies + ? <= total_copies", id, delta, delta).
		UpdateColumn("available_copies", gorm.Expr("available_copies + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&datatypes.Book{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return datatypes.NotFoundf("book with ID %d", id)
		}
		if delta < 0 {
			return datatypes.Conflictf("book is not available for loan")
		}
		return datatypes.Conflictf("available copies cannot exceed total copies")
	}
	return nil
}
