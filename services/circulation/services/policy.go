// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package services implements the circulation engines: catalog, members,
// loans, reservations, categories, institutions, and authentication. Each
// service validates against the shared store through GORM and performs its
// multi-row effects inside a single transaction.
package services

import (
	"time"

	"github.com/stacksys/circ/pkg/config"
	"github.com/stacksys/circ/services/circulation/datatypes"
)

// Policy is the typed member-type to cap mapping plus the duration and fine
// constants, resolved once from configuration. Unknown member types fall
// back to the PUBLIC caps, the most restrictive tier.
type Policy struct {
	LoanDurationDays        int
	FinePerDay              float64
	MaxRenewals             int
	ReservationDurationDays int

	maxLoans        map[datatypes.MemberType]int
	maxReservations map[datatypes.MemberType]int
}

// NewPolicy builds a Policy from the circulation configuration.
func NewPolicy(cfg config.CirculationConfig) *Policy {
	return &Policy{
		LoanDurationDays:        cfg.LoanDurationDays,
		FinePerDay:              cfg.FinePerDay,
		MaxRenewals:             cfg.MaxRenewals,
		ReservationDurationDays: cfg.ReservationDurationDays,
		maxLoans: map[datatypes.MemberType]int{
			datatypes.MemberStudent: cfg.MaxLoansStudent,
			datatypes.MemberTeacher: cfg.MaxLoansTeacher,
			datatypes.MemberPublic:  cfg.MaxLoansPublic,
		},
		maxReservations: map[datatypes.MemberType]int{
			datatypes.MemberStudent: cfg.MaxReservationsStudent,
			datatypes.MemberTeacher: cfg.MaxReservationsTeacher,
			datatypes.MemberPublic:  cfg.MaxReservationsPublic,
		},
	}
}

// MaxLoans returns the concurrent-loan cap for a member type.
func (p *Policy) MaxLoans(t datatypes.MemberType) int {
	if cap, ok := p.maxLoans[t]; ok {
		return cap
	}
	return p.maxLoans[datatypes.MemberPublic]
}

// MaxReservations returns the concurrent-reservation cap for a member type.
func (p *Policy) MaxReservations(t datatypes.MemberType) int {
	if cap, ok := p.maxReservations[t]; ok {
		return cap
	}
	return p.maxReservations[datatypes.MemberPublic]
}

// LoanPeriod is the loan duration as a time.Duration.
func (p *Policy) LoanPeriod() time.Duration {
	return time.Duration(p.LoanDurationDays) * 24 * time.Hour
}

// ReservationPeriod is the reservation hold window as a time.Duration.
func (p *Policy) ReservationPeriod() time.Duration {
	return time.Duration(p.ReservationDurationDays) * 24 * time.Hour
}
