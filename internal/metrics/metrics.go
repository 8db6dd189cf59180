// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

// Package metrics holds the Prometheus instruments shared by every component.
// Collectors register with the default registry on package init and are
// exposed on /metrics.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	subsystemBreaker    = "circuit_breaker"
	subsystemCache      = "cache"
	subsystemDuckDB     = "duckdb"
	subsystemSpatial    = "spatial"
	subsystemGeoIndex   = "geoindex"
	subsystemAPI        = "api"
	subsystemMarket     = "market"
	subsystemSupervisor = "supervisor"
)

// Circuit breakers, labeled by breaker name.
var (
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: subsystemBreaker,
		Name:      "state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	// result: success, failure, transient (excluded from failure counts), rejected
	CircuitBreakerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystemBreaker,
		Name:      "requests_total",
		Help:      "Calls through a circuit breaker by result",
	}, []string{"name", "result"})

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: subsystemBreaker,
		Name:      "consecutive_failures",
		Help:      "Current run of consecutive failures",
	}, []string{"name"})

	CircuitBreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystemBreaker,
		Name:      "state_transitions_total",
		Help:      "Circuit breaker state transitions",
	}, []string{"name", "from_state", "to_state"})
)

// Tiered cache, labeled by tier ("l1", "l2").
var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystemCache,
		Name:      "hits_total",
		Help:      "Cache hits",
	}, []string{"tier"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystemCache,
		Name:      "misses_total",
		Help:      "Cache misses",
	}, []string{"tier"})

	CacheSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: subsystemCache,
		Name:      "entries",
		Help:      "Entries currently cached",
	}, []string{"tier"})

	// reason: expired, capacity, deleted, cleared
	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystemCache,
		Name:      "evictions_total",
		Help:      "Cache evictions by reason",
	}, []string{"tier", "reason"})

	CacheL2Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystemCache,
		Name:      "l2_errors_total",
		Help:      "L2 operations that failed and were treated as a miss or skipped",
	}, []string{"op"})

	CacheWarmRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystemCache,
		Name:      "warm_runs_total",
		Help:      "Cache warming cycles by outcome",
	}, []string{"result"})
)

// DuckDB time-series store.
var (
	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: subsystemDuckDB,
		Name:      "query_duration_seconds",
		Help:      "DuckDB query latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DBQueryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystemDuckDB,
		Name:      "query_errors_total",
		Help:      "Failed DuckDB queries",
	}, []string{"operation", "table", "error_type"})

	DBOpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: subsystemDuckDB,
		Name:      "open_connections",
		Help:      "Connections currently open in the DuckDB pool",
	})
)

// Spatial engine and geo index.
var (
	// kind: circle, polygon, state, nearby, region
	SpatialQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: subsystemSpatial,
		Name:      "query_duration_seconds",
		Help:      "Spatial query latency on cache miss",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	SpatialDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystemSpatial,
		Name:      "degraded_total",
		Help:      "Spatial responses returned in degraded form after a backend failure",
	}, []string{"kind"})

	GeoIndexCellsScanned = promauto.NewHistogram(prometheus.HistogramOpts{
		Subsystem: subsystemGeoIndex,
		Name:      "cells_scanned",
		Help:      "Index cells fetched per radius search",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
	})
)

// HTTP API, labeled by chi route pattern.
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystemAPI,
		Name:      "requests_total",
		Help:      "API requests",
	}, []string{"method", "endpoint", "status_code"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: subsystemAPI,
		Name:      "request_duration_seconds",
		Help:      "API request latency",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "endpoint"})

	APIActiveRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: subsystemAPI,
		Name:      "active_requests",
		Help:      "API requests in flight",
	})
)

var (
	MarketEventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystemMarket,
		Name:      "events_processed_total",
		Help:      "Market events consumed from NATS by type and outcome",
	}, []string{"type", "result"})

	// event: terminate, panic, backoff, resume, stop_timeout
	SupervisorEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystemSupervisor,
		Name:      "events_total",
		Help:      "Suture supervisor events by supervisor and kind",
	}, []string{"supervisor", "event"})

	AppInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "app_info",
		Help: "Build information; always 1",
	}, []string{"version", "go_version"})
)

// RecordDBQuery observes a DuckDB query and counts it when it failed.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table, errorType(err)).Inc()
	}
}

func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest moves the in-flight gauge up on inc, down otherwise.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordSpatialQuery observes an uncached spatial query.
func RecordSpatialQuery(kind string, duration time.Duration, degraded bool) {
	SpatialQueryDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if degraded {
		SpatialDegraded.WithLabelValues(kind).Inc()
	}
}

// errorType bounds the error_type label to timeout, canceled and error.
func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}
