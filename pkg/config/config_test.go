// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_DocumentedPolicyValues(t *testing.T) {
	cfg := Default()

	if cfg.Circulation.LoanDurationDays != 14 {
		t.Errorf("LoanDurationDays = %d, want 14", cfg.Circulation.LoanDurationDays)
	}
	if cfg.Circulation.FinePerDay != 1.0 {
		t.Errorf("FinePerDay = %v, want 1.0", cfg.Circulation.FinePerDay)
	}
	if cfg.Circulation.MaxRenewals != 2 {
		t.Errorf("MaxRenewals = %d, want 2", cfg.Circulation.MaxRenewals)
	}
	if cfg.Circulation.ReservationDurationDays != 7 {
		t.Errorf("ReservationDurationDays = %d, want 7", cfg.Circulation.ReservationDurationDays)
	}
	if cfg.Circulation.MaxLoansStudent != 3 || cfg.Circulation.MaxLoansTeacher != 10 || cfg.Circulation.MaxLoansPublic != 2 {
		t.Errorf("loan caps = %d/%d/%d, want 3/10/2",
			cfg.Circulation.MaxLoansStudent, cfg.Circulation.MaxLoansTeacher, cfg.Circulation.MaxLoansPublic)
	}
	if cfg.Circulation.MaxReservationsStudent != 2 || cfg.Circulation.MaxReservationsTeacher != 5 || cfg.Circulation.MaxReservationsPublic != 1 {
		t.Errorf("reservation caps = %d/%d/%d, want 2/5/1",
			cfg.Circulation.MaxReservationsStudent, cfg.Circulation.MaxReservationsTeacher, cfg.Circulation.MaxReservationsPublic)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("server:\n  port: \"9090\"\ncirculation:\n  loan_duration_days: 21\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Circulation.LoanDurationDays != 21 {
		t.Errorf("LoanDurationDays = %d, want 21", cfg.Circulation.LoanDurationDays)
	}
	// Untouched keys keep their defaults.
	if cfg.Circulation.MaxRenewals != 2 {
		t.Errorf("MaxRenewals = %d, want 2", cfg.Circulation.MaxRenewals)
	}
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("circulation:\n  fine_per_day: 0.5\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FINE_PER_DAY", "2.5")
	t.Setenv("MAX_LOANS_STUDENT", "5")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Circulation.FinePerDay != 2.5 {
		t.Errorf("FinePerDay = %v, want 2.5 (env wins over file)", cfg.Circulation.FinePerDay)
	}
	if cfg.Circulation.MaxLoansStudent != 5 {
		t.Errorf("MaxLoansStudent = %d, want 5", cfg.Circulation.MaxLoansStudent)
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("JWTSecret = %q, want test-secret", cfg.Auth.JWTSecret)
	}
}

func TestLoad_IgnoresUnparseableEnvNumbers(t *testing.T) {
	t.Setenv("LOAN_DURATION_DAYS", "two weeks")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Circulation.LoanDurationDays != 14 {
		t.Errorf("LoanDurationDays = %d, want default 14", cfg.Circulation.LoanDurationDays)
	}
}
