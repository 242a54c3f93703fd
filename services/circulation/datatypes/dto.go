// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// Request DTOs validated at the HTTP boundary via gin binding
// (go-playground/validator tags). Pointer fields distinguish "absent" from
// "zero" on partial updates.

// CreateBookRequest creates a catalog record. AvailableCopies defaults to
// TotalCopies when omitted.
type CreateBookRequest struct {
	Title           string  `json:"title" binding:"required,max=255"`
	Author          string  `json:"author" binding:"required,max=255"`
	ISBN            *string `json:"isbn" binding:"omitempty,max=20,isbn_checksum"`
	Genre           string  `json:"genre" binding:"omitempty,max=100"`
	PublicationYear *int    `json:"publicationYear" binding:"omitempty,min=1000,max=2030"`
	Publisher       string  `json:"publisher" binding:"omitempty,max=255"`
	Pages           *int    `json:"pages" binding:"omitempty,min=1"`
	Language        string  `json:"language" binding:"omitempty,max=50"`
	TotalCopies     int     `json:"totalCopies" binding:"required,min=1"`
	AvailableCopies *int    `json:"availableCopies" binding:"omitempty,min=0"`
	Location        string  `json:"location" binding:"omitempty,max=255"`
	Description     string  `json:"description"`
	CoverURL        string  `json:"coverUrl" binding:"omitempty,url"`
}

// UpdateBookRequest partially updates a catalog record.
type UpdateBookRequest struct {
	Title           *string `json:"title" binding:"omitempty,max=255"`
	Author          *string `json:"author" binding:"omitempty,max=255"`
	ISBN            *string `json:"isbn" binding:"omitempty,max=20,isbn_checksum"`
	Genre           *string `json:"genre" binding:"omitempty,max=100"`
	PublicationYear *int    `json:"publicationYear" binding:"omitempty,min=1000,max=2030"`
	Publisher       *string `json:"publisher" binding:"omitempty,max=255"`
	Pages           *int    `json:"pages" binding:"omitempty,min=1"`
	Language        *string `json:"language" binding:"omitempty,max=50"`
	TotalCopies     *int    `json:"totalCopies" binding:"omitempty,min=1"`
	AvailableCopies *int    `json:"availableCopies" binding:"omitempty,min=0"`
	Location        *string `json:"location" binding:"omitempty,max=255"`
	Description     *string `json:"description"`
	CoverURL        *string `json:"coverUrl" binding:"omitempty,url"`
}

// CreateUserRequest registers a member through the admin surface.
type CreateUserRequest struct {
	Name     string     `json:"name" binding:"required,max=255"`
	Email    string     `json:"email" binding:"required,email"`
	Password string     `json:"password" binding:"omitempty,min=8"`
	Phone    string     `json:"phone" binding:"omitempty,max=50"`
	Address  string     `json:"address" binding:"omitempty,max=255"`
	Age      *int       `json:"age" binding:"omitempty,min=1,max=120"`
	UserType MemberType `json:"userType" binding:"required,oneof=STUDENT TEACHER PUBLIC"`
}

// UpdateUserRequest partially updates a member.
type UpdateUserRequest struct {
	Name     *string     `json:"name" binding:"omitempty,max=255"`
	Email    *string     `json:"email" binding:"omitempty,email"`
	Phone    *string     `json:"phone" binding:"omitempty,max=50"`
	Address  *string     `json:"address" binding:"omitempty,max=255"`
	Age      *int        `json:"age" binding:"omitempty,min=1,max=120"`
	UserType *MemberType `json:"userType" binding:"omitempty,oneof=STUDENT TEACHER PUBLIC"`
}

// UpdateUserStatusRequest activates or suspends a member.
type UpdateUserStatusRequest struct {
	Status UserStatus `json:"status" binding:"required,oneof=ACTIVE INACTIVE SUSPENDED"`
}

// FineRequest posts or pays a fine amount.
type FineRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// RegisterRequest is the self-service signup body.
type RegisterRequest struct {
	Name     string     `json:"name" binding:"required,max=255"`
	Email    string     `json:"email" binding:"required,email"`
	Password string     `json:"password" binding:"required,min=8"`
	Phone    string     `json:"phone" binding:"omitempty,max=50"`
	Address  string     `json:"address" binding:"omitempty,max=255"`
	Age      *int       `json:"age" binding:"omitempty,min=1,max=120"`
	UserType MemberType `json:"userType" binding:"required,oneof=STUDENT TEACHER PUBLIC"`
}

// LoginRequest authenticates a member by email and password.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the signed access token plus the sanitized user.
type AuthResponse struct {
	User        *User  `json:"user"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   string `json:"expires_in"`
}

// CreateLoanRequest checks a book out to a member. DueDate overrides the
// configured loan duration when set.
type CreateLoanRequest struct {
	UserID  uint       `json:"userId" binding:"required,min=1"`
	BookID  uint       `json:"bookId" binding:"required,min=1"`
	DueDate *time.Time `json:"dueDate"`
}

// CreateReservationRequest queues a member for the next available copy.
// ExpirationDate overrides the configured reservation duration when set.
type CreateReservationRequest struct {
	UserID         uint       `json:"userId" binding:"required,min=1"`
	BookID         uint       `json:"bookId" binding:"required,min=1"`
	ExpirationDate *time.Time `json:"expirationDate"`
}

// CreateCategoryRequest adds a subject category.
type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

// UpdateCategoryRequest partially updates a category.
type UpdateCategoryRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description"`
}

// CreateInstitutionRequest adds a partner institution.
type CreateInstitutionRequest struct {
	Name         string `json:"name" binding:"required,max=255"`
	Address      string `json:"address" binding:"omitempty,max=255"`
	ContactEmail string `json:"contactEmail" binding:"omitempty,email"`
	Phone        string `json:"phone" binding:"omitempty,max=50"`
}

// UpdateInstitutionRequest partially updates an institution.
type UpdateInstitutionRequest struct {
	Name         *string `json:"name" binding:"omitempty,max=255"`
	Address      *string `json:"address" binding:"omitempty,max=255"`
	ContactEmail *string `json:"contactEmail" binding:"omitempty,email"`
	Phone        *string `json:"phone" binding:"omitempty,max=50"`
}

// SweepResult reports how many rows a batch transition touched.
type SweepResult struct {
	Updated int64 `json:"updated"`
}

// LoanStatistics aggregates loan counts and the sum of assessed fines.
type LoanStatistics struct {
	TotalLoans    int64   `json:"totalLoans"`
	ActiveLoans   int64   `json:"activeLoans"`
	OverdueLoans  int64   `json:"overdueLoans"`
	ReturnedLoans int64   `json:"returnedLoans"`
	TotalFines    float64 `json:"totalFines"`
}

// ReservationStatistics aggregates reservation counts per status.
type ReservationStatistics struct {
	TotalReservations     int64 `json:"totalReservations"`
	ActiveReservations    int64 `json:"activeReservations"`
	FulfilledReservations int64 `json:"fulfilledReservations"`
	CancelledReservations int64 `json:"cancelledReservations"`
	ExpiredReservations   int64 `json:"expiredReservations"`
}

// BookStatistics aggregates catalog counts.
type BookStatistics struct {
	TotalBooks       int64 `json:"totalBooks"`
	AvailableBooks   int64 `json:"availableBooks"`
	UnavailableBooks int64 `json:"unavailableBooks"`
	TotalLoans       int64 `json:"totalLoans"`
	ActiveLoans      int64 `json:"activeLoans"`
}

// CategoryStatistics aggregates category counts plus the most populated
// subject.
type CategoryStatistics struct {
	TotalCategories        int64            `json:"totalCategories"`
	CategoriesWithBooks    int64            `json:"categoriesWithBooks"`
	CategoriesWithoutBooks int64            `json:"categoriesWithoutBooks"`
	MostPopularCategory    *CategorySummary `json:"mostPopularCategory"`
}

// CategorySummary is the name/count pair reported in statistics.
type CategorySummary struct {
	Name      string `json:"name"`
	BookCount int    `json:"bookCount"`
}

// UserStats summarizes one member's circulation state.
type UserStats struct {
	ActiveLoans        int64 `json:"activeLoans"`
	OverdueLoans       int64 `json:"overdueLoans"`
	TotalLoans         int64 `json:"totalLoans"`
	ActiveReservations int64 `json:"activeReservations"`
	TotalReservations  int64 `json:"totalReservations"`
	CanBorrow          bool  `json:"canBorrow"`
}
