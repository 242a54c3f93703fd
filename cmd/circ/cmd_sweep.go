// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacksys/circ/services/circulation"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep {overdue|expired|promotions|due-soon}",
	Short: "Run a batch sweep against the circulation database",
	Long: `Runs one of the periodic maintenance passes and exits:

  overdue     mark active loans past their due date as overdue
  expired     mark active reservations past their expiration as expired
  promotions  fulfill queued reservations for books with copies on the shelf
  due-soon    publish reminders for loans due within the next 24 hours

The first three are the same passes the HTTP sweep endpoints trigger.
Schedule this command from cron or a systemd timer.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"overdue", "expired", "promotions", "due-soon"},
	Run:       runSweep,
}

func runSweep(cmd *cobra.Command, args []string) {
	db, err := circulation.OpenDatabase(cfg)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		exit(1)
	}

	deps := circulation.BuildServices(db, cfg, nil, logger)
	ctx := context.Background()

	var updated int64
	switch args[0] {
	case "overdue":
		result, err := deps.Loans.SweepOverdue(ctx)
		if err != nil {
			logger.Error("overdue sweep failed", "error", err)
			exit(1)
		}
		updated = result.Updated
	case "expired":
		result, err := deps.Reservations.SweepExpired(ctx)
		if err != nil {
			logger.Error("expired sweep failed", "error", err)
			exit(1)
		}
		updated = result.Updated
	case "due-soon":
		n, err := deps.Loans.NotifyDueSoon(ctx, 24*time.Hour)
		if err != nil {
			logger.Error("due-soon pass failed", "error", err)
			exit(1)
		}
		updated = int64(n)
	case "promotions":
		result, err := deps.Reservations.SweepPromotions(ctx)
		if err != nil {
			logger.Error("promotion sweep failed", "error", err)
			exit(1)
		}
		updated = result.Updated
	default:
		logger.Error("unknown sweep", "name", args[0])
		exit(1)
	}

	fmt.Printf("sweep %s: %d rows updated\n", args[0], updated)
	exit(0)
}
