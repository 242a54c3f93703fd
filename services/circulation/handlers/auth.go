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
	"github.com/stacksys/circ/services/circulation/middleware"
	"github.com/stacksys/circ/services/circulation/services"
)

// Register handles POST /v1/auth/register.
func Register(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RegisterRequest
		if !bindJSON(c, &req) {
			return
		}
		resp, err := auth.Register(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

// Login handles POST /v1/auth/login.
func Login(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.LoginRequest
		if !bindJSON(c, &req) {
			return
		}
		resp, err := auth.Login(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// RefreshToken handles POST /v1/auth/refresh. It requires a valid
// bearer token and issues a fresh one for the same account.
func RefreshToken(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		resp, err := auth.Refresh(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// Profile handles GET /v1/auth/profile.
func Profile(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		user, err := auth.Profile(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
