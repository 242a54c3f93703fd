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
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/stacksys/circ/pkg/config"
	"github.com/stacksys/circ/services/circulation/datatypes"
)

// Claims is the JWT payload: the member's identity plus the standard
// registered set.
type Claims struct {
	UserID   uint                 `json:"uid"`
	Email    string               `json:"email"`
	UserType datatypes.MemberType `json:"userType"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a manager from the auth config.
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		secret: []byte(cfg.JWTSecret),
		ttl:    time.Duration(cfg.TokenTTLHours) * time.Hour,
	}
}

// TTL reports the configured token lifetime.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Sign issues a token for the member.
func (m *TokenManager) Sign(user *datatypes.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Email:    user.Email,
		UserType: user.UserType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims. Expired,
// malformed, and wrong-algorithm tokens are all ErrUnauthorized.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, datatypes.Unauthorizedf("invalid or expired token")
	}
	return claims, nil
}

// AuthService handles registration, login, and token refresh on top of the
// member store.
type AuthService struct {
	users  *UserService
	tokens *TokenManager
	log    *slog.Logger
}

func NewAuthService(users *UserService, tokens *TokenManager, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{users: users, tokens: tokens, log: log}
}

// Register signs a member up and logs them straight in.
func (s *AuthService) Register(ctx context.Context, req *datatypes.RegisterRequest) (*datatypes.AuthResponse, error) {
	user, err := s.users.Create(ctx, &datatypes.CreateUserRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address,
		Age:      req.Age,
		UserType: req.UserType,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", "user_id", user.ID, "user_type", string(user.UserType))
	return s.respond(user)
}

// Login verifies credentials and issues a token. Wrong email and wrong
// password are indistinguishable to the caller; an inactive account is
// rejected after the password check.
func (s *AuthService) Login(ctx context.Context, req *datatypes.LoginRequest) (*datatypes.AuthResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, datatypes.ErrNotFound) {
			return nil, datatypes.Unauthorizedf("invalid credentials")
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return nil, datatypes.Unauthorizedf("invalid credentials")
	}
	if user.Status != datatypes.UserActive {
		return nil, datatypes.Unauthorizedf("account is not active")
	}

	if err := s.users.TouchActivity(ctx, user.ID); err != nil {
		s.log.Warn("updating last activity failed", "user_id", user.ID, "error", err)
	}

	s.log.Info("user logged in", "user_id", user.ID)
	return s.respond(user)
}

// Refresh issues a fresh token for an authenticated member, re-checking
// that the account still exists and is active.
func (s *AuthService) Refresh(ctx context.Context, userID uint) (*datatypes.AuthResponse, error) {
	user, err := s.users.loadBare(ctx, userID)
	if err != nil {
		if errors.Is(err, datatypes.ErrNotFound) {
			return nil, datatypes.Unauthorizedf("user not found")
		}
		return nil, err
	}
	if user.Status != datatypes.UserActive {
		return nil, datatypes.Unauthorizedf("account is not active")
	}
	return s.respond(user)
}

// Profile loads the authenticated member's own record.
func (s *AuthService) Profile(ctx context.Context, userID uint) (*datatypes.User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, datatypes.ErrNotFound) {
			return nil, datatypes.Unauthorizedf("user not found")
		}
		return nil, err
	}
	user.Password = ""
	return user, nil
}

func (s *AuthService) respond(user *datatypes.User) (*datatypes.AuthResponse, error) {
	token, err := s.tokens.Sign(user)
	if err != nil {
		return nil, err
	}
	sanitized := *user
	sanitized.Password = ""
	return &datatypes.AuthResponse{
		User:        &sanitized,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   s.tokens.TTL().String(),
	}, nil
}
