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

// CreateInstitution handles POST /v1/institutions.
func CreateInstitution(institutions *services.InstitutionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateInstitutionRequest
		if !bindJSON(c, &req) {
			return
		}
		institution, err := institutions.Create(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, institution)
	}
}

// ListInstitutions handles GET /v1/institutions.
func ListInstitutions(institutions *services.InstitutionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, ok := bindQuery(c)
		if !ok {
			return
		}
		page, err := institutions.List(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// GetInstitution handles GET /v1/institutions/:id.
func GetInstitution(institutions *services.InstitutionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		institution, err := institutions.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, institution)
	}
}

// UpdateInstitution handles PATCH /v1/institutions/:id.
func UpdateInstitution(institutions *services.InstitutionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req datatypes.UpdateInstitutionRequest
		if !bindJSON(c, &req) {
			return
		}
		institution, err := institutions.Update(c.Request.Context(), id, &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, institution)
	}
}

// DeleteInstitution handles DELETE /v1/institutions/:id.
func DeleteInstitution(institutions *services.InstitutionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := institutions.Delete(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "institution deleted successfully"})
	}
}
