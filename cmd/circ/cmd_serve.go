// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stacksys/circ/services/circulation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the circulation HTTP service",
	Long: `Connects to the configured Postgres database, applies schema
migrations, and serves the REST API plus the websocket notification
endpoint until interrupted.`,
	Run: runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := circulation.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("service startup failed", "error", err)
		exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("service terminated", "error", err)
		exit(1)
	}
	logger.Info("service stopped")
	exit(0)
}
