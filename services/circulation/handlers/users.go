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

// CreateUser handles POST /v1/users.
func CreateUser(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateUserRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := users.Create(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

// ListUsers handles GET /v1/users.
func ListUsers(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, ok := bindQuery(c)
		if !ok {
			return
		}
		page, err := users.List(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// GetUser handles GET /v1/users/:id.
func GetUser(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		user, err := users.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		user.Password = ""
		c.JSON(http.StatusOK, user)
	}
}

// UpdateUser handles PATCH /v1/users/:id.
func UpdateUser(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req datatypes.UpdateUserRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := users.Update(c.Request.Context(), id, &req)
		if err != nil {
			respondError(c, err)
			return
		}
		user.Password = ""
		c.JSON(http.StatusOK, user)
	}
}

// UpdateUserStatus handles PATCH /v1/users/:id/status.
func UpdateUserStatus(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req datatypes.UpdateUserStatusRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := users.UpdateStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		user.Password = ""
		c.JSON(http.StatusOK, user)
	}
}

// DeleteUser handles DELETE /v1/users/:id.
func DeleteUser(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := users.Delete(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "user deleted successfully"})
	}
}

// AddUserFine handles POST /v1/users/:id/fines.
func AddUserFine(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req datatypes.FineRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := users.AddFine(c.Request.Context(), id, req.Amount)
		if err != nil {
			respondError(c, err)
			return
		}
		user.Password = ""
		c.JSON(http.StatusOK, user)
	}
}

// PayUserFine handles POST /v1/users/:id/fines/pay.
func PayUserFine(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req datatypes.FineRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := users.PayFine(c.Request.Context(), id, req.Amount)
		if err != nil {
			respondError(c, err)
			return
		}
		user.Password = ""
		c.JSON(http.StatusOK, user)
	}
}

// UserStats handles GET /v1/users/:id/stats.
func UserStats(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		stats, err := users.Stats(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
