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
	"strings"

	"gorm.io/gorm"

	"github.com/stacksys/circ/services/circulation/datatypes"
)

var institutionSortColumns = []string{"name", "contact_email", "created_at"}

// InstitutionService owns partner organization records. Plain CRUD; nothing
// in the circulation engine references institutions, so deletion is never
// blocked.
type InstitutionService struct {
	db *gorm.DB
}

func NewInstitutionService(db *gorm.DB) *InstitutionService {
	return &InstitutionService{db: db}
}

// Create adds an institution with a unique name.
func (s *InstitutionService) Create(ctx context.Context, req *datatypes.CreateInstitutionRequest) (*datatypes.Institution, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&datatypes.Institution{}).
		Where("name = ?", req.Name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, datatypes.Conflictf("institution with this name already exists")
	}

	institution := &datatypes.Institution{
		Name:         req.Name,
		Address:      req.Address,
		ContactEmail: req.ContactEmail,
		Phone:        req.Phone,
	}
	if err := s.db.WithContext(ctx).Create(institution).Error; err != nil {
		return nil, fmt.Errorf("creating institution: %w", err)
	}
	return institution, nil
}

// Get loads one institution by ID.
func (s *InstitutionService) Get(ctx context.Context, id uint) (*datatypes.Institution, error) {
	var institution datatypes.Institution
	if err := s.db.WithContext(ctx).First(&institution, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("institution with ID %d", id)
		}
		return nil, err
	}
	return &institution, nil
}

// List returns one page of institutions, optionally filtered by a search
// over name, address, and contact email.
func (s *InstitutionService) List(ctx context.Context, q *datatypes.PageQuery) (*datatypes.Page[datatypes.Institution], error) {
	if q.SortOrder == "" {
		q.SortOrder = "asc"
	}
	q.Normalize()

	scope := s.db.WithContext(ctx).Model(&datatypes.Institution{})
	if q.Search != "" {
		needle := "%" + strings.ToLower(q.Search) + "%"
		scope = scope.Where(
			"LOWER(name) LIKE ? OR LOWER(address) LIKE ? OR LOWER(contact_email) LIKE ?",
			needle, needle, needle,
		)
	}

	orderBy, err := orderClause(q, "name", institutionSortColumns)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, err
	}

	var institutions []datatypes.Institution
	if err := scope.Order(orderBy).Limit(q.Limit).Offset(q.Offset()).Find(&institutions).Error; err != nil {
		return nil, err
	}
	return datatypes.NewPage(institutions, total, q), nil
}

// Update applies a partial update, re-checking name uniqueness.
func (s *InstitutionService) Update(ctx context.Context, id uint, req *datatypes.UpdateInstitutionRequest) (*datatypes.Institution, error) {
	institution, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != institution.Name {
		var count int64
		if err := s.db.WithContext(ctx).Model(&datatypes.Institution{}).
			Where("name = ? AND id <> ?", *req.Name, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, datatypes.Conflictf("institution with this name already exists")
		}
		institution.Name = *req.Name
	}
	if req.Address != nil {
		institution.Address = *req.Address
	}
	if req.ContactEmail != nil {
		institution.ContactEmail = *req.ContactEmail
	}
	if req.Phone != nil {
		institution.Phone = *req.Phone
	}

	if err := s.db.WithContext(ctx).Save(institution).Error; err != nil {
		return nil, fmt.Errorf("updating institution %d: %w", id, err)
	}
	return institution, nil
}

// Delete removes an institution.
func (s *InstitutionService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&datatypes.Institution{}, id).Error
}
