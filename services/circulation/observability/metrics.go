// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the circulation service.
//
// # Description
//
// Metrics cover the HTTP surface (request counts and latency) and the
// circulation domain (loans opened and closed, fines assessed, sweep
// activity, websocket fan-out). Exposed via the /metrics endpoint; pair
// with Prometheus + Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "circ"

// Metrics holds every Prometheus metric the service emits. Initialize once
// at startup via InitMetrics.
type Metrics struct {
	// RequestsTotal counts HTTP requests.
	// Labels: method, path (route template), status.
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures HTTP request latency.
	// Labels: method, path.
	RequestDurationSeconds *prometheus.HistogramVec

	// LoansTotal counts loan lifecycle events.
	// Labels: event (created, returned, renewed).
	LoansTotal *prometheus.CounterVec

	// FinesAssessedTotal accumulates fine amounts posted at return time.
	FinesAssessedTotal prometheus.Counter

	// SweepUpdatesTotal counts rows touched by batch sweeps.
	// Labels: sweep (overdue, expired, promotions).
	SweepUpdatesTotal *prometheus.CounterVec

	// WebsocketConnections tracks open notification connections.
	WebsocketConnections prometheus.GaugeFunc
}

var (
	defaultMetrics *Metrics
	initOnce       sync.Once
)

// InitMetrics registers the service metrics with the default registry.
// Safe to call more than once; only the first call registers.
// connections reports the current websocket connection count and may be nil.
func InitMetrics(connections func() int) *Metrics {
	initOnce.Do(func() {
		if connections == nil {
			connections = func() int { return 0 }
		}
		defaultMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Name:      "http_requests_total",
					Help:      "Total HTTP requests by method, route, and status",
				},
				[]string{"method", "path", "status"},
			),
			RequestDurationSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Name:      "http_request_duration_seconds",
					Help:      "HTTP request latency by method and route",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),
			LoansTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Name:      "loans_total",
					Help:      "Loan lifecycle events by type",
				},
				[]string{"event"},
			),
			FinesAssessedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Name:      "fines_assessed_total",
					Help:      "Sum of fine amounts assessed on late returns",
				},
			),
			SweepUpdatesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Name:      "sweep_updates_total",
					Help:      "Rows transitioned by batch sweeps",
				},
				[]string{"sweep"},
			),
			WebsocketConnections: promauto.NewGaugeFunc(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Name:      "websocket_connections",
					Help:      "Open notification websocket connections",
				},
				func() float64 { return float64(connections()) },
			),
		}
	})
	return defaultMetrics
}

// Default returns the metrics instance, or nil before InitMetrics.
func Default() *Metrics {
	return defaultMetrics
}
