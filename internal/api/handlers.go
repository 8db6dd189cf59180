// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package api

import (
	"context"
	"time"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/cache"
	"github.com/tomtom215/geomarket/internal/market"
	"github.com/tomtom215/geomarket/internal/models"
	"github.com/tomtom215/geomarket/internal/spatial"
)

// SpatialService answers the spatial query families.
type SpatialService interface {
	Circle(ctx context.Context, q spatial.CircleQuery) (models.SpatialResult, error)
	Polygon(ctx context.Context, q spatial.PolygonQuery) (models.SpatialResult, error)
	State(ctx context.Context, q spatial.StateQuery) (models.SpatialResult, error)
	NearbyTicker(ctx context.Context, q spatial.NearbyQuery) (models.SpatialResult, error)
	Region(ctx context.Context, q spatial.RegionQuery) (models.RegionStats, error)
}

// MarketService answers the market data queries.
type MarketService interface {
	Latest(ctx context.Context, ticker string) (models.Bar, error)
	History(ctx context.Context, q market.HistoryQuery) ([]models.Bar, error)
	Bulk(ctx context.Context, q market.BulkQuery) ([]models.TickerSeries, error)
	Overview(ctx context.Context) (models.MarketOverview, error)
	Search(ctx context.Context, q string, limit int) ([]models.Company, error)
}

// CacheAdmin is the operator view of the tiered cache.
type CacheAdmin interface {
	Stats(ctx context.Context) cache.TieredStats
	ClearPattern(ctx context.Context, pattern string) (int, error)
	ClearL1() int
}

// BreakerSnapshotter reports every registered circuit breaker.
type BreakerSnapshotter interface {
	Snapshot() map[string]breaker.Snapshot
}

// Pinger checks a backend's connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the handler dependencies. KV may be nil when no networked store
// is configured.
type Deps struct {
	Spatial  SpatialService
	Market   MarketService
	Cache    CacheAdmin
	Breakers BreakerSnapshotter
	DB       Pinger
	KV       Pinger
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers_spatial.go: spatial query endpoints
//   - handlers_market.go: market data endpoints
//   - handlers_cache.go: operator cache endpoints
//   - handlers_health.go: liveness and readiness probes
type Handler struct {
	spatial   SpatialService
	market    MarketService
	cache     CacheAdmin
	breakers  BreakerSnapshotter
	db        Pinger
	kv        Pinger
	startTime time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		spatial:   d.Spatial,
		market:    d.Market,
		cache:     d.Cache,
		breakers:  d.Breakers,
		db:        d.DB,
		kv:        d.KV,
		startTime: time.Now(),
	}
}
