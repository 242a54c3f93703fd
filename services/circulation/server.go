// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package circulation assembles the lending service: database, engines,
// notification hub, HTTP routes and observability.
//
// # Description
//
// New builds a fully wired Server from configuration. Run starts the HTTP
// listener and the websocket hub and blocks until the context is cancelled,
// then drains in-flight requests before returning.
//
// # Thread Safety
//
// A Server is started once. Run must not be called concurrently.
package circulation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stacksys/circ/pkg/config"
	"github.com/stacksys/circ/pkg/logging"
	"github.com/stacksys/circ/services/circulation/datatypes"
	"github.com/stacksys/circ/services/circulation/middleware"
	"github.com/stacksys/circ/services/circulation/notify"
	"github.com/stacksys/circ/services/circulation/observability"
	"github.com/stacksys/circ/services/circulation/routes"
	"github.com/stacksys/circ/services/circulation/services"
)

const serviceName = "circulation-service"

// shutdownGrace bounds how long Run waits for in-flight requests.
const shutdownGrace = 10 * time.Second

// Server is the assembled circulation service.
type Server struct {
	cfg    *config.Config
	log    *logging.Logger
	db     *gorm.DB
	hub    *notify.Hub
	engine *gin.Engine

	shutdownTracing func(context.Context) error
}

// OpenDatabase connects to Postgres using the configured DSN.
func OpenDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

// Migrate applies the schema for all circulation models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(datatypes.AllModels()...)
}

// BuildServices constructs the engine layer on top of db. The sink receives
// lifecycle events; pass nil to discard them.
func BuildServices(db *gorm.DB, cfg *config.Config, sink services.EventSink, log *logging.Logger) routes.Deps {
	policy := services.NewPolicy(cfg.Circulation)
	tokens := services.NewTokenManager(cfg.Auth)
	users := services.NewUserService(db)
	slogger := log.Slog()

	return routes.Deps{
		DB:           db,
		Auth:         services.NewAuthService(users, tokens, slogger),
		Tokens:       tokens,
		Books:        services.NewBookService(db),
		Users:        users,
		Loans:        services.NewLoanService(db, policy, sink, slogger),
		Reservations: services.NewReservationService(db, policy, sink, slogger),
		Categories:   services.NewCategoryService(db),
		Institutions: services.NewInstitutionService(db),
	}
}

// New wires the full service: database, migrations, engines, hub,
// metrics, tracing and the HTTP route table.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Server, error) {
	db, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	hub := notify.NewHub(log.Slog())
	metrics := observability.InitMetrics(hub.Connections)
	sink := &meteredSink{hub: hub, metrics: metrics}

	shutdownTracing, err := observability.InitTracing(ctx, serviceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	deps := BuildServices(db, cfg, sink, log)
	deps.Hub = hub

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(otelgin.Middleware(serviceName))
	engine.Use(middleware.Metrics(metrics))
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		engine.Use(limiter.Middleware())
	}

	routes.SetupRoutes(engine, deps)

	return &Server{
		cfg:             cfg,
		log:             log,
		db:              db,
		hub:             hub,
		engine:          engine,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Run serves HTTP and the websocket hub until ctx is cancelled, then
// shuts both down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.cfg.Server.Port,
		Handler: s.engine,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		s.log.Info("http listener starting", "port", s.cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down", "grace", shutdownGrace.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("http shutdown incomplete", "error", err)
		}
		if err := s.shutdownTracing(shutdownCtx); err != nil {
			s.log.Warn("tracing shutdown incomplete", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// meteredSink forwards events to the hub and keeps the circulation
// counters current along the way.
type meteredSink struct {
	hub     *notify.Hub
	metrics *observability.Metrics
}

func (m *meteredSink) Publish(evt notify.Event) {
	switch evt.Type {
	case notify.EventLoanCreated, notify.EventLoanReturned, notify.EventLoanOverdue:
		m.metrics.LoansTotal.WithLabelValues(string(evt.Type)).Inc()
	}
	switch evt.Type {
	case notify.EventLoanOverdue:
		m.metrics.SweepUpdatesTotal.WithLabelValues("overdue").Inc()
	case notify.EventReservationExpired:
		m.metrics.SweepUpdatesTotal.WithLabelValues("expired").Inc()
	}
	if evt.Type == notify.EventLoanReturned {
		if data, ok := evt.Data.(map[string]any); ok {
			if fine, ok := data["fine"].(float64); ok && fine > 0 {
				m.metrics.FinesAssessedTotal.Add(fine)
			}
		}
	}
	m.hub.Publish(evt)
}
