// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/geomarket/internal/config"
	"github.com/tomtom215/geomarket/internal/middleware"
)

// RouterConfig holds the HTTP-facing settings of the router.
type RouterConfig struct {
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
	Security          config.SecurityConfig
}

// RouterConfigFrom extracts the router settings from the service config.
func RouterConfigFrom(cfg *config.Config) RouterConfig {
	return RouterConfig{
		CORSOrigins:       cfg.Server.CORSOrigins,
		RateLimitRequests: cfg.Server.RateLimitReqs,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
		RateLimitDisabled: cfg.Server.RateLimitDisabled,
		Security:          cfg.Security,
	}
}

// NewRouter configures all HTTP routes.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	limit := newLimiter(cfg)

	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(cfg.CORSOrigins)) // global so OPTIONS preflight is answered
	r.Use(middleware.PrometheusMetrics)

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	// ========================
	// Spatial Endpoints
	// ========================
	r.Route("/api/v1/spatial", func(r chi.Router) {
		r.Use(chimiddleware.Compress(5))
		spatial := func(pattern string) chi.Router {
			return r.With(limit.budget(spatialBudgets[pattern]))
		}
		spatial("/circle").Post("/circle", h.SpatialCircle)
		spatial("/polygon").Post("/polygon", h.SpatialPolygon)
		spatial("/state/{state}").Get("/state/{state}", h.SpatialState)
		spatial("/nearby-ticker").Post("/nearby-ticker", h.SpatialNearbyTicker)
		spatial("/regional-stats").Post("/regional-stats", h.SpatialRegionStats)
	})

	// ========================
	// Market Endpoints
	// ========================
	r.Group(func(r chi.Router) {
		r.Use(limit.budget(cfg.RateLimitRequests))
		r.Use(chimiddleware.Compress(5))
		r.Get("/api/v1/market/overview", h.MarketOverview)
		r.Get("/api/v1/market/{ticker}/latest", h.MarketLatest)
		r.Get("/api/v1/market/{ticker}/history", h.MarketHistory)
		r.Get("/api/v1/companies/search", h.CompanySearch)
	})
	r.With(limit.budget(bulkBudget), chimiddleware.Compress(5)).
		Post("/api/v1/market/bulk-with-location", h.MarketBulk)

	// ========================
	// Operator Endpoints
	// ========================
	r.Route("/api/v1/cache", func(r chi.Router) {
		r.Use(OperatorAuth(cfg.Security))
		r.Get("/stats", h.CacheStats)
		r.Post("/clear", h.CacheClear)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
