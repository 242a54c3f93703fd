// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// PageQuery is the shared query-string shape for every paginated listing.
// Binding tags enforce page >= 1 and 1 <= limit <= 100; Normalize fills the
// documented defaults for unset fields.
type PageQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Search    string `form:"search"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder" binding:"omitempty,oneof=asc desc"`
}

// Normalize applies defaults: page 1, limit 10, order desc.
func (q *PageQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}

// Offset returns the row offset for the current page.
func (q *PageQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// PageMeta describes one page of a paginated result set.
type PageMeta struct {
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPageMeta derives the page arithmetic from a total row count.
func NewPageMeta(total int64, page, limit int) PageMeta {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return PageMeta{
		Total:       total,
		Page:        page,
		Limit:       limit,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// Page is a paginated response envelope.
type Page[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// NewPage assembles a Page from rows and a total count. A nil slice comes
// back as an empty JSON array, not null.
func NewPage[T any](data []T, total int64, q *PageQuery) *Page[T] {
	if data == nil {
		data = []T{}
	}
	return &Page[T]{Data: data, Meta: NewPageMeta(total, q.Page, q.Limit)}
}
