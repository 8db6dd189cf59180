// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package spatial

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/geomarket/internal/geo"
	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/metrics"
	"github.com/tomtom215/geomarket/internal/models"
)

// Region types.
const (
	RegionCircle  = "circle"
	RegionPolygon = "polygon"
	RegionState   = "state"
)

const (
	dateLayout = "2006-01-02"

	// regionResolveLimit bounds how many companies a circle or polygon
	// region resolves to.
	regionResolveLimit = 1000
)

// RegionQuery aggregates prices over the companies in a region. Only the
// fields of the selected RegionType are used.
type RegionQuery struct {
	RegionType string `json:"region_type"`

	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	RadiusKm  float64 `json:"radius_km,omitempty"`

	Coordinates [][]float64 `json:"coordinates,omitempty"`

	State string `json:"state,omitempty"`

	// StartDate and EndDate are optional YYYY-MM-DD bounds, inclusive.
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

type regionWindow struct {
	start, end time.Time // zero means open
}

func (e *Engine) normalizeRegion(q *RegionQuery) (regionWindow, error) {
	var w regionWindow

	switch q.RegionType {
	case RegionCircle:
		cq := CircleQuery{Latitude: q.Latitude, Longitude: q.Longitude, RadiusKm: q.RadiusKm}
		if _, err := cq.normalize(); err != nil {
			return w, err
		}
	case RegionPolygon:
		pq := PolygonQuery{Coordinates: q.Coordinates}
		if _, err := pq.normalize(); err != nil {
			return w, err
		}
	case RegionState:
		sq := StateQuery{State: q.State}
		if err := sq.normalize(); err != nil {
			return w, err
		}
		q.State = sq.State
	default:
		return w, validationError("region_type must be one of circle, polygon, state")
	}

	if q.StartDate != "" {
		t, err := time.Parse(dateLayout, q.StartDate)
		if err != nil {
			return w, validationError("start_date must be YYYY-MM-DD")
		}
		w.start = t
	}
	if q.EndDate != "" {
		t, err := time.Parse(dateLayout, q.EndDate)
		if err != nil {
			return w, validationError("end_date must be YYYY-MM-DD")
		}
		w.end = t.Add(24*time.Hour - time.Nanosecond)
	}
	if !w.start.IsZero() && !w.end.IsZero() && w.start.After(w.end) {
		return w, validationError("start_date must not be after end_date")
	}
	return w, nil
}

// Region returns price statistics for the companies in the region.
//
// ErrNotFound is returned for a region without companies. Regions larger
// than the aggregation threshold return only the company count. Backend
// failures never surface as errors: the result is marked Degraded with the
// statistics left nil.
func (e *Engine) Region(ctx context.Context, q RegionQuery) (models.RegionStats, error) {
	if _, err := e.normalizeRegion(&q); err != nil {
		return models.RegionStats{}, err
	}
	return e.region.Get(ctx, q)
}

func (e *Engine) regionQuery(ctx context.Context, q RegionQuery) (stats models.RegionStats, err error) {
	start := time.Now()
	w, err := e.normalizeRegion(&q)
	if err != nil {
		return models.RegionStats{}, err
	}

	today := e.cfg.Clock().UTC().Format(dateLayout)
	stats = models.RegionStats{
		RegionType: q.RegionType,
		Period:     models.Period{StartDate: q.StartDate, EndDate: q.EndDate},
	}
	if stats.Period.StartDate == "" {
		stats.Period.StartDate = today
	}
	if stats.Period.EndDate == "" {
		stats.Period.EndDate = today
	}
	defer func() {
		elapsed := time.Since(start)
		stats.ExecutionTimeMS = elapsed.Milliseconds()
		metrics.RecordSpatialQuery("region", elapsed, stats.Degraded)
	}()

	tickers, err := e.resolveRegion(ctx, q)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("region_type", q.RegionType).Msg("Region resolution failed, returning degraded result")
		stats.Description = describeRegion(0)
		stats.Degraded = true
		return stats, nil
	}
	if len(tickers) == 0 {
		return models.RegionStats{}, fmt.Errorf("no companies found in the specified region: %w", ErrNotFound)
	}

	stats.CompanyCount = len(tickers)
	stats.Tickers = tickers
	stats.Description = describeRegion(len(tickers))

	if len(tickers) > e.cfg.RegionThreshold {
		return stats, nil
	}

	prices, volumes, err := e.collectSamples(ctx, tickers, w)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int("companies", len(tickers)).Msg("Region aggregation failed, returning degraded result")
		stats.Degraded = true
		return stats, nil
	}

	stats.Aggregated = true
	applyStats(&stats, prices, volumes)
	return stats, nil
}

func describeRegion(n int) string {
	return fmt.Sprintf("Region with %d companies", n)
}

// resolveRegion lists the tickers in the region.
func (e *Engine) resolveRegion(ctx context.Context, q RegionQuery) ([]string, error) {
	var companies []models.SpatialCompany

	switch q.RegionType {
	case RegionCircle:
		hits, err := e.index.Radius(ctx, geo.Point{Lat: q.Latitude, Lng: q.Longitude}, q.RadiusKm, regionResolveLimit)
		if err != nil {
			return nil, err
		}
		companies = hitsToCompanies(hits)
	case RegionPolygon:
		pg, err := geo.ValidatePolygon(q.Coordinates)
		if err != nil {
			return nil, err
		}
		if companies, err = e.withinPolygon(ctx, pg, regionResolveLimit); err != nil {
			return nil, err
		}
	case RegionState:
		return e.store.TickersInState(ctx, q.State)
	}

	tickers := make([]string, len(companies))
	for i, c := range companies {
		tickers[i] = c.Ticker
	}
	return tickers, nil
}

// collectSamples fetches up to RegionRowsPerEntity recent bars per ticker
// with bounded concurrency and returns every close and volume.
func (e *Engine) collectSamples(ctx context.Context, tickers []string, w regionWindow) ([]float64, []int64, error) {
	var (
		mu      sync.Mutex
		prices  []float64
		volumes []int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FanoutLimit)
	for _, ticker := range tickers {
		g.Go(func() error {
			bars, err := e.store.Bars(gctx, ticker, w.start, w.end, e.cfg.RegionRowsPerEntity)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, b := range bars {
				prices = append(prices, b.Close)
				volumes = append(volumes, b.Volume)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return prices, volumes, nil
}

// applyStats fills the statistical fields. Prices are rounded to cents; the
// standard deviation is the sample deviation and needs two prices.
func applyStats(stats *models.RegionStats, prices []float64, volumes []int64) {
	stats.Samples = len(prices)
	if len(prices) == 0 {
		return
	}

	sum, lo, hi := 0.0, math.Inf(1), math.Inf(-1)
	for _, p := range prices {
		sum += p
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	mean := sum / float64(len(prices))

	avg, minP, maxP := geo.Round2(mean), geo.Round2(lo), geo.Round2(hi)
	stats.AvgPrice, stats.MinPrice, stats.MaxPrice = &avg, &minP, &maxP

	if len(prices) > 1 {
		ss := 0.0
		for _, p := range prices {
			ss += (p - mean) * (p - mean)
		}
		sd := geo.Round2(math.Sqrt(ss / float64(len(prices)-1)))
		stats.StdDevPrice = &sd
	}

	if len(volumes) > 0 {
		var total int64
		for _, v := range volumes {
			total += v
		}
		stats.TotalVolume = &total
	}
}
