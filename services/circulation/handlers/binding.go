// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/stacksys/circ/pkg/validation"
)

// init registers the isbn_checksum binding rule so malformed ISBNs are
// rejected at the HTTP boundary, before the catalog service normalizes
// and dedupes them.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("isbn_checksum", func(fl validator.FieldLevel) bool {
			return validation.ValidateISBN(fl.Field().String()) == nil
		})
	}
}
