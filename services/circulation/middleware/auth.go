// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the circulation service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization
// header, verifies it with the token manager, and stores the resulting
// claims in the Gin context for downstream handlers.
//
//	Request
//	   │
//	   ▼
//	RequireAuth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► verifier.Verify(token)
//	   │
//	   └─► Store Claims in context
//	           │
//	           ▼
//	       Handler (retrieves via GetClaims / UserID)
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stacksys/circ/services/circulation/services"
)

// claimsKey is the context key for storing verified token claims. A typed
// key string prevents collisions with other context values.
const claimsKey = "circ_auth_claims"

// TokenVerifier validates an access token and returns its claims.
// Implemented by services.TokenManager.
type TokenVerifier interface {
	Verify(token string) (*services.Claims, error)
}

// SetClaims stores verified claims in the Gin context. Called by
// RequireAuth; exposed for tests that bypass the middleware.
func SetClaims(c *gin.Context, claims *services.Claims) {
	c.Set(claimsKey, claims)
}

// GetClaims retrieves the verified claims, or nil when the request is not
// authenticated.
func GetClaims(c *gin.Context) *services.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, ok := v.(*services.Claims)
	if !ok {
		return nil
	}
	return claims
}

// UserID resolves the authenticated member's ID from the Gin context.
func UserID(c *gin.Context) (uint, bool) {
	claims := GetClaims(c)
	if claims == nil {
		return 0, false
	}
	return claims.UserID, true
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token's claims in the context for downstream handlers.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must be 'Bearer <token>'"})
			return
		}

		claims, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		SetClaims(c, claims)
		c.Next()
	}
}
