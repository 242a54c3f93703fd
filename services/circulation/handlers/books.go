// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stacksys/circ/services/circulation/datatypes"
	"github.com/stacksys/circ/services/circulation/services"
)

// CreateBook handles POST /v1/books.
func CreateBook(books *services.BookService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateBookRequest
		if !bindJSON(c, &req) {
			return
		}
		book, err := books.Create(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, book)
	}
}

// ListBooks handles GET /v1/books.
func ListBooks(books *services.BookService) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, ok := bindQuery(c)
		if !ok {
			return
		}
		page, err := books.List(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// ListAvailableBooks handles GET /v1/books/available.
func ListAvailableBooks(books *services.BookService) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, ok := bindQuery(c)
		if !ok {
			return
		}
		page, err := books.ListAvailable(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// ListBooksByGenre handles GET /v1/books/genre/:genre.
func ListBooksByGenre(books *services.BookService) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, ok := bindQuery(c)
		if !ok {
			return
		}
		page, err := books.ListByGenre(c.Request.Context(), c.Param("genre"), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// PopularBooks handles GET /v1/books/popular.
func PopularBooks(books *services.BookService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		result, err := books.Popular(c.Request.Context(), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// BookStatistics handles GET /v1/books/statistics.
func BookStatistics(books *services.BookService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := books.Statistics(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// GetBook handles GET /v1/books/:id.
func GetBook(books *services.BookService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		book, err := books.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, book)
	}
}

// UpdateBook handles PATCH /v1/books/:id.
func UpdateBook(books *services.BookService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req datatypes.UpdateBookRequest
		if !bindJSON(c, &req) {
			return
		}
		book, err := books.Update(c.Request.Context(), id, &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, book)
	}
}

// DeleteBook handles DELETE /v1/books/:id.
func DeleteBook(books *services.BookService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := books.Delete(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "book deleted successfully"})
	}
}
