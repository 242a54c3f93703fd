// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stacksys/circ/pkg/config"
	"github.com/stacksys/circ/services/circulation/datatypes"
	"github.com/stacksys/circ/services/circulation/services"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

func testDeps(t *testing.T) Deps {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(datatypes.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Default()
	policy := services.NewPolicy(cfg.Circulation)
	tokens := services.NewTokenManager(cfg.Auth)
	users := services.NewUserService(db)

	return Deps{
		DB:           db,
		Auth:         services.NewAuthService(users, tokens, nil),
		Tokens:       tokens,
		Books:        services.NewBookService(db),
		Users:        users,
		Loans:        services.NewLoanService(db, policy, nil, nil),
		Reservations: services.NewReservationService(db, policy, nil, nil),
		Categories:   services.NewCategoryService(db),
		Institutions: services.NewInstitutionService(db),
	}
}

func TestSetupRoutes_RegistersCoreRoutes(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testDeps(t))

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/ready"},
		{"GET", "/metrics"},
		{"POST", "/v1/auth/register"},
		{"POST", "/v1/auth/login"},
		{"GET", "/v1/auth/profile"},
		{"POST", "/v1/auth/refresh"},
		{"POST", "/v1/books"},
		{"GET", "/v1/books/available"},
		{"GET", "/v1/books/genre/:genre"},
		{"GET", "/v1/books/popular"},
		{"GET", "/v1/books/statistics"},
		{"PATCH", "/v1/users/:id/status"},
		{"POST", "/v1/users/:id/fines/pay"},
		{"POST", "/v1/loans"},
		{"PATCH", "/v1/loans/update-overdue"},
		{"POST", "/v1/loans/notify-due-soon"},
		{"PATCH", "/v1/loans/:id/return"},
		{"PATCH", "/v1/loans/:id/renew"},
		{"GET", "/v1/loans/user/:userId"},
		{"PATCH", "/v1/reservations/update-expired"},
		{"PATCH", "/v1/reservations/update-pending"},
		{"PATCH", "/v1/reservations/:id/cancel"},
		{"PATCH", "/v1/reservations/:id/fulfill"},
		{"GET", "/v1/categories/statistics"},
		{"DELETE", "/v1/institutions/:id"},
	}

	routes := router.Routes()
	for _, want := range expected {
		found := false
		for _, r := range routes {
			if r.Method == want.method && r.Path == want.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected route %s %s not found", want.method, want.path)
		}
	}
}

func TestSetupRoutes_WebsocketDisabledWithoutHub(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testDeps(t))

	for _, r := range router.Routes() {
		if r.Path == "/v1/events/ws" {
			t.Fatal("websocket route registered without a hub")
		}
	}
}

func TestSetupRoutes_ProtectedRoutesRequireToken(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testDeps(t))

	cases := []struct {
		method string
		path   string
	}{
		{"GET", "/v1/books"},
		{"GET", "/v1/users"},
		{"GET", "/v1/loans"},
		{"GET", "/v1/reservations"},
		{"GET", "/v1/auth/profile"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, w.Code)
		}
	}
}

func TestSetupRoutes_HealthIsPublic(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testDeps(t))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
