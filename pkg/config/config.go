// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads circ configuration from an optional YAML file
// overlaid by environment variables.
//
// Resolution order, lowest to highest precedence:
//
//  1. Built-in defaults (Default())
//  2. YAML file (config.yaml by default)
//  3. Environment variables (LOAN_DURATION_DAYS, FINE_PER_DAY, ...)
//
// A missing config file is not an error; the defaults plus the environment
// are enough to run the service against a local database.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration for the circ service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Circulation CirculationConfig `yaml:"circulation"`
	Log         LogConfig         `yaml:"log"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
}

type ServerConfig struct {
	// Port the HTTP listener binds to.
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	// DSN is a Postgres connection string, e.g.
	// "host=localhost user=circ password=circ dbname=circ port=5432 sslmode=disable".
	DSN string `yaml:"dsn"`
}

type AuthConfig struct {
	// JWTSecret signs access tokens (HS256). Must be set in production.
	JWTSecret string `yaml:"jwt_secret"`
	// TokenTTLHours is the access token lifetime. Default 168 (7 days).
	TokenTTLHours int `yaml:"token_ttl_hours"`
}

// CirculationConfig carries the lending policy knobs. The zero value is not
// usable; obtain one via Default() and override selectively.
type CirculationConfig struct {
	LoanDurationDays        int     `yaml:"loan_duration_days"`
	FinePerDay              float64 `yaml:"fine_per_day"`
	MaxRenewals             int     `yaml:"max_renewals"`
	ReservationDurationDays int     `yaml:"reservation_duration_days"`

	MaxLoansStudent int `yaml:"max_loans_student"`
	MaxLoansTeacher int `yaml:"max_loans_teacher"`
	MaxLoansPublic  int `yaml:"max_loans_public"`

	MaxReservationsStudent int `yaml:"max_reservations_student"`
	MaxReservationsTeacher int `yaml:"max_reservations_teacher"`
	MaxReservationsPublic  int `yaml:"max_reservations_public"`
}

type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`
	// Dir enables file logging when non-empty.
	Dir string `yaml:"dir"`
	// JSON switches stderr output to JSON format.
	JSON bool `yaml:"json"`
}

type TelemetryConfig struct {
	// OTLPEndpoint is the OTLP gRPC collector address. Tracing is disabled
	// when empty.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

type RateLimitConfig struct {
	// RequestsPerSecond per client IP. Zero disables rate limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{DSN: "host=localhost user=circ password=circ dbname=circ port=5432 sslmode=disable"},
		Auth: AuthConfig{
			JWTSecret:     "dev-secret-change-me",
			TokenTTLHours: 168,
		},
		Circulation: CirculationConfig{
			LoanDurationDays:        14,
			FinePerDay:              1.0,
			MaxRenewals:             2,
			ReservationDurationDays: 7,
			MaxLoansStudent:         3,
			MaxLoansTeacher:         10,
			MaxLoansPublic:          2,
			MaxReservationsStudent:  2,
			MaxReservationsTeacher:  5,
			MaxReservationsPublic:   1,
		},
		Log:       LogConfig{Level: "info"},
		RateLimit: RateLimitConfig{RequestsPerSecond: 50, Burst: 100},
	}
}

// Load reads the YAML file at path (when it exists) on top of the defaults,
// then applies environment overrides. An unreadable or malformed file is an
// error; an absent one is not.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to env overrides
		default:
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto the config. Variable names
// follow the deployment convention used by the reference .env file.
func (c *Config) applyEnv() {
	envString("CIRC_PORT", &c.Server.Port)
	envString("DATABASE_DSN", &c.Database.DSN)
	envString("JWT_SECRET", &c.Auth.JWTSecret)
	envInt("JWT_TTL_HOURS", &c.Auth.TokenTTLHours)

	envInt("LOAN_DURATION_DAYS", &c.Circulation.LoanDurationDays)
	envFloat("FINE_PER_DAY", &c.Circulation.FinePerDay)
	envInt("MAX_RENEWALS", &c.Circulation.MaxRenewals)
	envInt("RESERVATION_DURATION_DAYS", &c.Circulation.ReservationDurationDays)

	envInt("MAX_LOANS_STUDENT", &c.Circulation.MaxLoansStudent)
	envInt("MAX_LOANS_TEACHER", &c.Circulation.MaxLoansTeacher)
	envInt("MAX_LOANS_PUBLIC", &c.Circulation.MaxLoansPublic)

	envInt("MAX_RESERVATIONS_STUDENT", &c.Circulation.MaxReservationsStudent)
	envInt("MAX_RESERVATIONS_TEACHER", &c.Circulation.MaxReservationsTeacher)
	envInt("MAX_RESERVATIONS_PUBLIC", &c.Circulation.MaxReservationsPublic)

	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_DIR", &c.Log.Dir)
	envString("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
