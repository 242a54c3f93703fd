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

var categorySortColumns = []string{"name", "books_count", "created_at"}

// CategoryService owns subject categories. Names are unique; deletion is
// blocked while books reference the category.
type CategoryService struct {
	db *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

// Create adds a category with a unique name.
func (s *CategoryService) Create(ctx context.Context, req *datatypes.CreateCategoryRequest) (*datatypes.Category, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&datatypes.Category{}).
		Where("name = ?", req.Name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, datatypes.Conflictf("category with this name already exists")
	}

	category := &datatypes.Category{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	return category, nil
}

// Get loads one category by ID.
func (s *CategoryService) Get(ctx context.Context, id uint) (*datatypes.Category, error) {
	var category datatypes.Category
	if err := s.db.WithContext(ctx).First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("category with ID %d", id)
		}
		return nil, err
	}
	return &category, nil
}

// FindByName loads one category by its exact name.
func (s *CategoryService) FindByName(ctx context.Context, name string) (*datatypes.Category, error) {
	var category datatypes.Category
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, datatypes.NotFoundf("category with name %q", name)
		}
		return nil, err
	}
	return &category, nil
}

// List returns one page of categories, optionally filtered by a search over
// name and description. Default order is name ascending.
func (s *CategoryService) List(ctx context.Context, q *datatypes.PageQuery) (*datatypes.Page[datatypes.Category], error) {
	// Alphabetical listings read better ascending.
	if q.SortOrder == "" {
		q.SortOrder = "asc"
	}
	q.Normalize()

	scope := s.db.WithContext(ctx).Model(&datatypes.Category{})
	if q.Search != "" {
		needle := "%" + strings.ToLower(q.Search) + "%"
		scope = scope.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", needle, needle)
	}

	orderBy, err := orderClause(q, "name", categorySortColumns)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, err
	}

	var categories []datatypes.Category
	if err := scope.Order(orderBy).Limit(q.Limit).Offset(q.Offset()).Find(&categories).Error; err != nil {
		return nil, err
	}
	return datatypes.NewPage(categories, total, q), nil
}

// Update applies a partial update, re-checking name uniqueness.
func (s *CategoryService) Update(ctx context.Context, id uint, req *datatypes.UpdateCategoryRequest) (*datatypes.Category, error) {
	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != category.Name {
		var count int64
		if err := s.db.WithContext(ctx).Model(&datatypes.Category{}).
			Where("name = ? AND id <> ?", *req.Name, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, datatypes.Conflictf("category with this name already exists")
		}
		category.Name = *req.Name
	}
	if req.Description != nil {
		category.Description = *req.Description
	}

	if err := s.db.WithContext(ctx).Save(category).Error; err != nil {
		return nil, fmt.Errorf("updating category %d: %w", id, err)
	}
	return category, nil
}

// Delete removes a category, blocked while books are assigned to it.
func (s *CategoryService) Delete(ctx context.Context, id uint) error {
	category, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if category.BooksCount > 0 {
		return datatypes.Conflictf("cannot delete category that has associated books")
	}
	return s.db.WithContext(ctx).Delete(&datatypes.Category{}, id).Error
}

// Statistics aggregates category counts and names the most populated one.
func (s *CategoryService) Statistics(ctx context.Context) (*datatypes.CategoryStatistics, error) {
	db := s.db.WithContext(ctx)
	stats := &datatypes.CategoryStatistics{}

	if err := db.Model(&datatypes.Category{}).Count(&stats.TotalCategories).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&datatypes.Category{}).Where("books_count > 0").Count(&stats.CategoriesWithBooks).Error; err != nil {
		return nil, err
	}
	stats.CategoriesWithoutBooks = stats.TotalCategories - stats.CategoriesWithBooks

	var top datatypes.Category
	err := db.Order("books_count DESC").First(&top).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return stats, nil
		}
		return nil, err
	}
	stats.MostPopularCategory = &datatypes.CategorySummary{
		Name:      top.Name,
		BookCount: top.BooksCount,
	}
	return stats, nil
}
