// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/stacksys/circ/pkg/config"
	"github.com/stacksys/circ/pkg/logging"
)

var (
	cfg        *config.Config
	logger     *logging.Logger
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "circ",
	Short: "A CLI to run and manage the circulation service",
	Long: `circ runs the library circulation backend: book, user, loan and
reservation management over a REST API, with batch sweeps for overdue
loans and expired reservations.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatalf("Error loading configuration: %v", err)
		}

		logger = logging.New(logging.Config{
			Service: "circ",
			Level:   logging.ParseLevel(cfg.Log.Level),
			LogDir:  cfg.Log.Dir,
			JSON:    cfg.Log.JSON,
		})
		logger.Install()
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
}

// exit closes the logger before terminating with the given code.
func exit(code int) {
	if logger != nil {
		_ = logger.Close()
	}
	os.Exit(code)
}
