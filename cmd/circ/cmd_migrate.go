// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"

	"github.com/stacksys/circ/services/circulation"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations and exit",
	Run:   runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) {
	db, err := circulation.OpenDatabase(cfg)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		exit(1)
	}
	if err := circulation.Migrate(db); err != nil {
		logger.Error("migration failed", "error", err)
		exit(1)
	}
	logger.Info("schema migration complete")
	exit(0)
}
