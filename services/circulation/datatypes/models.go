// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the persistent entities, status state machines,
// request/response DTOs, and error kinds shared across the circulation
// service.
//
// # Entities
//
// The data model is a classic circulation schema: Book and User are the two
// stores of shared mutable state (available copies and fine balance), Loan
// and Reservation reference exactly one of each and carry their own status
// state machine. Category and Institution are simple administrative records.
//
// # Invariants
//
//   - 0 <= Book.AvailableCopies <= Book.TotalCopies, at all times
//   - User.Fines >= 0, at all times
//   - a user holds at most one ACTIVE/OVERDUE loan per book
//
// The services package maintains these invariants; every mutation of
// AvailableCopies or Fines happens inside the same transaction as the loan
// or reservation state change that triggered it.
package datatypes

import (
	"time"
)

// User is a library member. The Fines balance is mutated only by the loan
// engine (late return) and the pay-fine operation.
type User struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Name             string     `gorm:"type:varchar(255);not null" json:"name"`
	Email            string     `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Password         string     `gorm:"type:varchar(255)" json:"-"`
	Phone            string     `gorm:"type:varchar(50)" json:"phone,omitempty"`
	Address          string     `gorm:"type:varchar(255)" json:"address,omitempty"`
	Age              *int       `json:"age,omitempty"`
	UserType         MemberType `gorm:"type:varchar(20);not null;default:'PUBLIC';index" json:"userType"`
	Status           UserStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	Fines            float64    `gorm:"type:decimal(10,2);not null;default:0" json:"fines"`
	RegistrationDate time.Time  `gorm:"autoCreateTime" json:"registrationDate"`
	LastActivity     time.Time  `gorm:"autoUpdateTime" json:"lastActivity"`

	Loans        []Loan        `json:"loans,omitempty"`
	Reservations []Reservation `json:"reservations,omitempty"`
}

func (User) TableName() string { return "users" }

// Book is a catalog record with a physical copy count. AvailableCopies is
// adjusted exclusively through the conditional-update primitive in the books
// service; reservation creation never touches it.
type Book struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Title           string     `gorm:"type:varchar(255);not null;index" json:"title"`
	Author          string     `gorm:"type:varchar(255);not null;index" json:"author"`
	ISBN            *string    `gorm:"type:varchar(20);uniqueIndex" json:"isbn,omitempty"`
	Genre           string     `gorm:"type:varchar(100);index" json:"genre,omitempty"`
	PublicationYear *int       `json:"publicationYear,omitempty"`
	Publisher       string     `gorm:"type:varchar(255)" json:"publisher,omitempty"`
	Pages           *int       `json:"pages,omitempty"`
	Language        string     `gorm:"type:varchar(50)" json:"language,omitempty"`
	TotalCopies     int        `gorm:"not null" json:"totalCopies"`
	AvailableCopies int        `gorm:"not null" json:"availableCopies"`
	Location        string     `gorm:"type:varchar(255)" json:"location,omitempty"`
	Description     string     `gorm:"type:text" json:"description,omitempty"`
	CoverURL        string     `gorm:"type:text" json:"coverUrl,omitempty"`
	Status          BookStatus `gorm:"type:varchar(20);not null;default:'AVAILABLE'" json:"status"`
	AddedDate       time.Time  `gorm:"autoCreateTime" json:"addedDate"`
	LastUpdated     time.Time  `gorm:"autoUpdateTime" json:"lastUpdated"`

	Loans        []Loan        `json:"loans,omitempty"`
	Reservations []Reservation `json:"reservations,omitempty"`
}

func (Book) TableName() string { return "books" }

// Loan records one member borrowing one copy of one book.
//
// Lifecycle: created ACTIVE with DueDate = LoanDate + loan duration; a sweep
// moves past-due ACTIVE loans to OVERDUE; returning moves ACTIVE or OVERDUE
// to RETURNED and computes the fine at that moment. Renewal extends DueDate
// without changing status.
type Loan struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index:idx_loans_user_status" json:"userId"`
	User         *User      `json:"user,omitempty"`
	BookID       uint       `gorm:"not null;index:idx_loans_book_status" json:"bookId"`
	Book         *Book      `json:"book,omitempty"`
	LoanDate     time.Time  `gorm:"autoCreateTime" json:"loanDate"`
	DueDate      time.Time  `gorm:"not null;index" json:"dueDate"`
	ReturnDate   *time.Time `json:"returnDate,omitempty"`
	RenewalCount int        `gorm:"not null;default:0" json:"renewalCount"`
	Fine         float64    `gorm:"type:decimal(10,2);not null;default:0" json:"fine"`
	Status       LoanStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index:idx_loans_user_status;index:idx_loans_book_status" json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (Loan) TableName() string { return "loans" }

// Reservation is a member's claim on the next available copy of a book.
// Queue priority is implicit in ReservationDate ascending.
type Reservation struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	UserID          uint              `gorm:"not null;index:idx_reservations_user_status" json:"userId"`
	User            *User             `json:"user,omitempty"`
	BookID          uint              `gorm:"not null;index:idx_reservations_book_status" json:"bookId"`
	Book            *Book             `json:"book,omitempty"`
	ReservationDate time.Time         `gorm:"autoCreateTime;index" json:"reservationDate"`
	ExpirationDate  time.Time         `gorm:"not null;index" json:"expirationDate"`
	Status          ReservationStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index:idx_reservations_user_status;index:idx_reservations_book_status" json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func (Reservation) TableName() string { return "reservations" }

// Category groups books by subject. BooksCount is maintained by the catalog
// service and blocks deletion while non-zero.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	BooksCount  int       `gorm:"not null;default:0" json:"booksCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Category) TableName() string { return "categories" }

// Institution is a partner organization (school, company) whose members use
// the library.
type Institution struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(255);not null;index" json:"name"`
	Address      string    `gorm:"type:varchar(255)" json:"address,omitempty"`
	ContactEmail string    `gorm:"type:varchar(255)" json:"contactEmail,omitempty"`
	Phone        string    `gorm:"type:varchar(50)" json:"phone,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Institution) TableName() string { return "institutions" }

// AllModels lists every entity for AutoMigrate, in dependency order.
func AllModels() []any {
	return []any{
		&User{},
		&Book{},
		&Loan{},
		&Reservation{},
		&Category{},
		&Institution{},
	}
}
