// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stacksys/circ/services/circulation/datatypes"
	"github.com/stacksys/circ/services/circulation/services"
)

// CreateCategory handles POST /v1/categories.
func CreateCategory(categories *services.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateCategoryRequest
		if !bindJSON(c, &req) {
			return
		}
		category, err := categories.Create(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

// ListCategories handles GET /v1/categories.
func ListCategories(categories *services.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, ok := bindQuery(c)
		if !ok {
			return
		}
		page, err := categories.List(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// CategoryStatistics handles GET /v1/categories/statistics.
func CategoryStatistics(categories *services.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := categories.Statistics(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// GetCategory handles GET /v1/categories/:id.
func GetCategory(categories *services.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		category, err := categories.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

// UpdateCategory handles PATCH /v1/categories/:id.
func UpdateCategory(categories *services.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req datatypes.UpdateCategoryRequest
		if !bindJSON(c, &req) {
			return
		}
		category, err := categories.Update(c.Request.Context(), id, &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

// DeleteCategory handles DELETE /v1/categories/:id.
func DeleteCategory(categories *services.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := categories.Delete(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "category deleted successfully"})
	}
}
