// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stacksys/circ/services/circulation/datatypes"
	"github.com/stacksys/circ/services/circulation/services"
)

// CreateLoan handles POST /v1/loans.
func CreateLoan(loans *services.LoanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateLoanRequest
		if !bindJSON(c, &req) {
			return
		}
		loan, err := loans.Create(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, loan)
	}
}

// ListLoans handles GET /v1/loans.
func ListLoans(loans *services.LoanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, ok := bindQuery(c)
		if !ok {
			return
		}
		page, err := loans.List(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// ListLoansByUser handles GET /v1/loans/user/:userId.
func ListLoansByUser(loans *services.LoanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseID(c, "userId")
		if !ok {
			return
		}
		q, ok := bindQuery(c)
		if !ok {
			return
		}
		page, err := loans.ListByUser(c.Request.Context(), userID, q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// OverdueLoans handles GET /v1/loans/overdue.
func OverdueLoans(loans *services.LoanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := loans.Overdue(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// SweepOverdueLoans handles PATCH /v1/loans/update-overdue.
func SweepOverdueLoans(loans *services.LoanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := loans.SweepOverdue(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// NotifyDueSoonLoans handles POST /v1/loans/notify-due-soon. Publishes a
// reminder event for every loan due within the next 24 hours.
func NotifyDueSoonLoans(loans *services.LoanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := loans.NotifyDueSoon(c.Request.Context(), 24*time.Hour)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notified": n})
	}
}

// LoanStatistics handles GET /v1/loans/statistics.
func LoanStatistics(loans *services.LoanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := loans.Statistics(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// GetLoan handles GET /v1/loans/:id.
func GetLoan(loans *services.LoanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		loan, err := loans.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, loan)
	}
}

// ReturnLoan handles PATCH /v1/loans/:id/return.
func ReturnLoan(loans *services.LoanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		loan, err := loans.Return(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, loan)
	}
}

// RenewLoan handles PATCH /v1/loans/:id/renew.
func RenewLoan(loans *services.LoanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		loan, err := loans.Renew(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, loan)
	}
}
