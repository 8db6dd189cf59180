// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

// Package spatial answers "which companies are near or within this region"
// queries.
//
// Circle queries go straight to the geospatial index radius search. Polygon
// queries run a coarse radius search over the polygon's buffered bounding
// box, over-fetching candidates, and narrow them with exact point-in-polygon
// tests. Region queries resolve a circle, polygon or state to a ticker list
// and aggregate recent prices over it.
//
// Every query family is cached through the tiered cache under the
// "spatial:" prefix. Results that were degraded by a backend failure are
// returned with Degraded set and are never cached.
package spatial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/geomarket/internal/cache"
	"github.com/tomtom215/geomarket/internal/database"
	"github.com/tomtom215/geomarket/internal/geo"
	"github.com/tomtom215/geomarket/internal/geoindex"
	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/metrics"
	"github.com/tomtom215/geomarket/internal/models"
)

var (
	// ErrValidation wraps every request rejection. No backend is contacted
	// for a rejected request.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound reports a ticker without a location or a region without
	// companies.
	ErrNotFound = errors.New("not found")
)

// Index is the geospatial index the engine searches.
type Index interface {
	Radius(ctx context.Context, center geo.Point, radiusKm float64, limit int) ([]geoindex.Hit, error)
	Get(ctx context.Context, ticker string) (geoindex.Location, bool, error)
}

// Store is the time-series data the engine reads.
type Store interface {
	Company(ctx context.Context, ticker string) (models.Company, error)
	CompaniesInState(ctx context.Context, state string, limit int) ([]models.Company, error)
	TickersInState(ctx context.Context, state string) ([]string, error)
	LatestBar(ctx context.Context, ticker string) (models.Bar, error)
	Bars(ctx context.Context, ticker string, start, end time.Time, limit int) ([]models.Bar, error)
}

// Config tunes the engine. Zero values take the defaults noted per field.
type Config struct {
	PolygonBufferKm     float64 // 5
	OverfetchFactor     int     // 3
	RegionThreshold     int     // 20
	RegionRowsPerEntity int     // 100
	FanoutLimit         int     // 8

	CircleTTL  time.Duration // 20m
	PolygonTTL time.Duration // 30m
	StateTTL   time.Duration // 1h
	RegionTTL  time.Duration // 10m

	// Clock supplies "today" for region periods. Defaults to time.Now.
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.PolygonBufferKm <= 0 {
		c.PolygonBufferKm = 5
	}
	if c.OverfetchFactor <= 0 {
		c.OverfetchFactor = 3
	}
	if c.RegionThreshold <= 0 {
		c.RegionThreshold = 20
	}
	if c.RegionRowsPerEntity <= 0 {
		c.RegionRowsPerEntity = 100
	}
	if c.FanoutLimit <= 0 {
		c.FanoutLimit = 8
	}
	if c.CircleTTL <= 0 {
		c.CircleTTL = 20 * time.Minute
	}
	if c.PolygonTTL <= 0 {
		c.PolygonTTL = 30 * time.Minute
	}
	if c.StateTTL <= 0 {
		c.StateTTL = time.Hour
	}
	if c.RegionTTL <= 0 {
		c.RegionTTL = 10 * time.Minute
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Engine runs spatial queries. It is safe for concurrent use.
type Engine struct {
	index Index
	store Store
	cfg   Config

	circle  *cache.Loader[CircleQuery, models.SpatialResult]
	polygon *cache.Loader[PolygonQuery, models.SpatialResult]
	state   *cache.Loader[StateQuery, models.SpatialResult]
	nearby  *cache.Loader[NearbyQuery, models.SpatialResult]
	region  *cache.Loader[RegionQuery, models.RegionStats]
}

// New builds an engine. c caches every query family.
func New(index Index, store Store, c *cache.Tiered, cfg Config) *Engine {
	e := &Engine{index: index, store: store, cfg: cfg.withDefaults()}

	notDegraded := func(r models.SpatialResult) bool { return !r.Degraded }

	e.circle = cache.NewLoader(c, "circle", cache.LoaderOptions[CircleQuery, models.SpatialResult]{
		TTL: e.cfg.CircleTTL, KeyPrefix: cache.PrefixSpatial, ShouldCache: notDegraded,
	}, e.circleQuery)
	e.polygon = cache.NewLoader(c, "polygon", cache.LoaderOptions[PolygonQuery, models.SpatialResult]{
		TTL: e.cfg.PolygonTTL, KeyPrefix: cache.PrefixSpatial, ShouldCache: notDegraded,
	}, e.polygonQuery)
	e.state = cache.NewLoader(c, "state", cache.LoaderOptions[StateQuery, models.SpatialResult]{
		TTL: e.cfg.StateTTL, KeyPrefix: cache.PrefixSpatial, ShouldCache: notDegraded,
	}, e.stateQuery)
	e.nearby = cache.NewLoader(c, "nearby", cache.LoaderOptions[NearbyQuery, models.SpatialResult]{
		TTL: e.cfg.CircleTTL, KeyPrefix: cache.PrefixSpatial, ShouldCache: notDegraded,
	}, e.nearbyQuery)
	e.region = cache.NewLoader(c, "region", cache.LoaderOptions[RegionQuery, models.RegionStats]{
		TTL: e.cfg.RegionTTL, KeyPrefix: cache.PrefixSpatial,
		ShouldCache: func(r models.RegionStats) bool { return !r.Degraded },
	}, e.regionQuery)

	return e
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func hitsToCompanies(hits []geoindex.Hit) []models.SpatialCompany {
	out := make([]models.SpatialCompany, len(hits))
	for i, h := range hits {
		d := geo.Round2(h.DistanceKm)
		out[i] = models.SpatialCompany{
			Ticker:     h.Ticker,
			Name:       h.Name,
			Address:    h.Address,
			Latitude:   h.Latitude,
			Longitude:  h.Longitude,
			DistanceKm: &d,
		}
	}
	return out
}

// enrich attaches the latest bar to each company with bounded concurrency.
// It reports false when any lookup failed; companies keep whatever data was
// fetched. A ticker with no bars is not a failure.
func (e *Engine) enrich(ctx context.Context, companies []models.SpatialCompany) bool {
	if len(companies) == 0 {
		return true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FanoutLimit)

	data := make([]*models.MarketData, len(companies))
	for i := range companies {
		ticker := companies[i].Ticker
		g.Go(func() error {
			bar, err := e.store.LatestBar(gctx, ticker)
			if err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return nil
				}
				return err
			}
			data[i] = &models.MarketData{Close: bar.Close, Volume: bar.Volume, Timestamp: bar.Timestamp}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int("companies", len(companies)).Msg("Market data enrichment failed, returning companies without it")
		return false
	}
	for i := range companies {
		companies[i].MarketData = data[i]
	}
	return true
}

// finish stamps timing, records metrics and fills the count.
func finish(kind string, start time.Time, r *models.SpatialResult) {
	if r.Companies == nil {
		r.Companies = []models.SpatialCompany{}
	}
	r.Count = len(r.Companies)
	elapsed := time.Since(start)
	r.ExecutionTimeMS = elapsed.Milliseconds()
	metrics.RecordSpatialQuery(kind, elapsed, r.Degraded)
}
