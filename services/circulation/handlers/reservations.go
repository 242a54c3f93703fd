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

// CreateReservation handles POST /v1/reservations.
func CreateReservation(reservations *services.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateReservationRequest
		if !bindJSON(c, &req) {
			return
		}
		reservation, err := reservations.Create(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, reservation)
	}
}

// ListReservations handles GET /v1/reservations.
func ListReservations(reservations *services.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, ok := bindQuery(c)
		if !ok {
			return
		}
		page, err := reservations.List(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// ListReservationsByUser handles GET /v1/reservations/user/:userId.
func ListReservationsByUser(reservations *services.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseID(c, "userId")
		if !ok {
			return
		}
		q, ok := bindQuery(c)
		if !ok {
			return
		}
		page, err := reservations.ListByUser(c.Request.Context(), userID, q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// ExpiredReservations handles GET /v1/reservations/expired.
func ExpiredReservations(reservations *services.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := reservations.Expired(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// SweepExpiredReservations handles PATCH /v1/reservations/update-expired.
func SweepExpiredReservations(reservations *services.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := reservations.SweepExpired(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// SweepPendingReservations handles PATCH /v1/reservations/update-pending.
func SweepPendingReservations(reservations *services.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := reservations.SweepPromotions(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// ReservationStatistics handles GET /v1/reservations/statistics.
func ReservationStatistics(reservations *services.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := reservations.Statistics(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// GetReservation handles GET /v1/reservations/:id.
func GetReservation(reservations *services.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		reservation, err := reservations.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reservation)
	}
}

// CancelReservation handles PATCH /v1/reservations/:id/cancel.
func CancelReservation(reservations *services.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		reservation, err := reservations.Cancel(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reservation)
	}
}

// FulfillReservation handles PATCH /v1/reservations/:id/fulfill.
func FulfillReservation(reservations *services.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		reservation, err := reservations.Fulfill(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reservation)
	}
}
