// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires HTTP paths to their handlers.
//
// # Description
//
// SetupRoutes builds the full route table for the circulation service.
// Registration and login are public; everything else under /v1 requires
// a bearer token verified by the auth middleware. The health, readiness
// and Prometheus endpoints live outside the versioned group so that
// probes and scrapers never need credentials.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/stacksys/circ/services/circulation/handlers"
	"github.com/stacksys/circ/services/circulation/middleware"
	"github.com/stacksys/circ/services/circulation/notify"
	"github.com/stacksys/circ/services/circulation/services"
)

// Deps carries everything the route table needs. All fields must be
// non-nil except Hub, which disables the websocket endpoint when absent.
type Deps struct {
	DB           *gorm.DB
	Auth         *services.AuthService
	Tokens       *services.TokenManager
	Books        *services.BookService
	Users        *services.UserService
	Loans        *services.LoanService
	Reservations *services.ReservationService
	Categories   *services.CategoryService
	Institutions *services.InstitutionService
	Hub          *notify.Hub
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.Health())
	router.GET("/ready", handlers.Ready(deps.DB))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", handlers.Register(deps.Auth))
		auth.POST("/login", handlers.Login(deps.Auth))
	}

	protected := v1.Group("")
	protected.Use(middleware.RequireAuth(deps.Tokens))
	{
		protected.GET("/auth/profile", handlers.Profile(deps.Auth))
		protected.POST("/auth/refresh", handlers.RefreshToken(deps.Auth))

		books := protected.Group("/books")
		{
			books.POST("", handlers.CreateBook(deps.Books))
			books.GET("", handlers.ListBooks(deps.Books))
			books.GET("/available", handlers.ListAvailableBooks(deps.Books))
			books.GET("/genre/:genre", handlers.ListBooksByGenre(deps.Books))
			books.GET("/popular", handlers.PopularBooks(deps.Books))
			books.GET("/statistics", handlers.BookStatistics(deps.Books))
			books.GET("/:id", handlers.GetBook(deps.Books))
			books.PATCH("/:id", handlers.UpdateBook(deps.Books))
			books.DELETE("/:id", handlers.DeleteBook(deps.Books))
		}

		users := protected.Group("/users")
		{
			users.POST("", handlers.CreateUser(deps.Users))
			users.GET("", handlers.ListUsers(deps.Users))
			users.GET("/:id", handlers.GetUser(deps.Users))
			users.PATCH("/:id", handlers.UpdateUser(deps.Users))
			users.PATCH("/:id/status", handlers.UpdateUserStatus(deps.Users))
			users.DELETE("/:id", handlers.DeleteUser(deps.Users))
			users.POST("/:id/fines", handlers.AddUserFine(deps.Users))
			users.POST("/:id/fines/pay", handlers.PayUserFine(deps.Users))
			users.GET("/:id/stats", handlers.UserStats(deps.Users))
		}

		loans := protected.Group("/loans")
		{
			loans.POST("", handlers.CreateLoan(deps.Loans))
			loans.GET("", handlers.ListLoans(deps.Loans))
			loans.GET("/overdue", handlers.OverdueLoans(deps.Loans))
			loans.PATCH("/update-overdue", handlers.SweepOverdueLoans(deps.Loans))
			loans.POST("/notify-due-soon", handlers.NotifyDueSoonLoans(deps.Loans))
			loans.GET("/statistics", handlers.LoanStatistics(deps.Loans))
			loans.GET("/user/:userId", handlers.ListLoansByUser(deps.Loans))
			loans.GET("/:id", handlers.GetLoan(deps.Loans))
			loans.PATCH("/:id/return", handlers.ReturnLoan(deps.Loans))
			loans.PATCH("/:id/renew", handlers.RenewLoan(deps.Loans))
		}

		reservations := protected.Group("/reservations")
		{
			reservations.POST("", handlers.CreateReservation(deps.Reservations))
			reservations.GET("", handlers.ListReservations(deps.Reservations))
			reservations.GET("/expired", handlers.ExpiredReservations(deps.Reservations))
			reservations.PATCH("/update-expired", handlers.SweepExpiredReservations(deps.Reservations))
			reservations.PATCH("/update-pending", handlers.SweepPendingReservations(deps.Reservations))
			reservations.GET("/statistics", handlers.ReservationStatistics(deps.Reservations))
			reservations.GET("/user/:userId", handlers.ListReservationsByUser(deps.Reservations))
			reservations.GET("/:id", handlers.GetReservation(deps.Reservations))
			reservations.PATCH("/:id/cancel", handlers.CancelReservation(deps.Reservations))
			reservations.PATCH("/:id/fulfill", handlers.FulfillReservation(deps.Reservations))
		}

		categories := protected.Group("/categories")
		{
			categories.POST("", handlers.CreateCategory(deps.Categories))
			categories.GET("", handlers.ListCategories(deps.Categories))
			categories.GET("/statistics", handlers.CategoryStatistics(deps.Categories))
			categories.GET("/:id", handlers.GetCategory(deps.Categories))
			categories.PATCH("/:id", handlers.UpdateCategory(deps.Categories))
			categories.DELETE("/:id", handlers.DeleteCategory(deps.Categories))
		}

		institutions := protected.Group("/institutions")
		{
			institutions.POST("", handlers.CreateInstitution(deps.Institutions))
			institutions.GET("", handlers.ListInstitutions(deps.Institutions))
			institutions.GET("/:id", handlers.GetInstitution(deps.Institutions))
			institutions.PATCH("/:id", handlers.UpdateInstitution(deps.Institutions))
			institutions.DELETE("/:id", handlers.DeleteInstitution(deps.Institutions))
		}

		if deps.Hub != nil {
			protected.GET("/events/ws", notify.ServeWS(deps.Hub, middleware.UserID))
		}
	}
}
