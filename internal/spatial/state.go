// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package spatial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/geomarket/internal/database"
	"github.com/tomtom215/geomarket/internal/geo"
	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/models"
	"github.com/tomtom215/geomarket/internal/validation"
)

// Nearby-ticker limits.
const (
	MaxNearbyRadiusKm     = 500.0
	DefaultNearbyRadiusKm = 50.0
	MaxNearbyLimit        = 100
	DefaultNearbyLimit    = 20
)

// StateQuery selects geocoded companies headquartered in a US state.
type StateQuery struct {
	State             string `json:"state"`
	Limit             int    `json:"limit"`
	IncludeMarketData bool   `json:"include_market_data"`
}

func (q *StateQuery) normalize() error {
	state, err := validation.NormalizeState(q.State)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	q.State = state
	if q.Limit == 0 {
		q.Limit = DefaultQueryLimit
	}
	if q.Limit < 1 || q.Limit > MaxQueryLimit {
		return validationError("limit must be between 1 and %d", MaxQueryLimit)
	}
	return nil
}

// State returns up to Limit companies in the state, ordered by ticker.
func (e *Engine) State(ctx context.Context, q StateQuery) (models.SpatialResult, error) {
	if err := q.normalize(); err != nil {
		return models.SpatialResult{}, err
	}
	return e.state.Get(ctx, q)
}

func (e *Engine) stateQuery(ctx context.Context, q StateQuery) (models.SpatialResult, error) {
	start := time.Now()
	if err := q.normalize(); err != nil {
		return models.SpatialResult{}, err
	}

	rows, err := e.store.CompaniesInState(ctx, q.State, q.Limit)
	if err != nil {
		return models.SpatialResult{}, fmt.Errorf("state query: %w", err)
	}

	result := models.SpatialResult{Query: "state", State: q.State, Companies: make([]models.SpatialCompany, 0, len(rows))}
	for _, c := range rows {
		if !c.HasLocation() {
			continue
		}
		result.Companies = append(result.Companies, models.SpatialCompany{
			Ticker:    c.Ticker,
			Name:      c.Name,
			Address:   c.Address,
			Latitude:  *c.Latitude,
			Longitude: *c.Longitude,
		})
	}
	if q.IncludeMarketData && !e.enrich(ctx, result.Companies) {
		result.Degraded = true
	}
	finish("state", start, &result)
	return result, nil
}

// NearbyQuery selects companies near another company's headquarters.
type NearbyQuery struct {
	Ticker            string  `json:"ticker"`
	RadiusKm          float64 `json:"radius_km"`
	Limit             int     `json:"limit"`
	IncludeMarketData bool    `json:"include_market_data"`
}

func (q *NearbyQuery) normalize() error {
	ticker, err := validation.NormalizeTicker(q.Ticker)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	q.Ticker = ticker
	if q.RadiusKm == 0 {
		q.RadiusKm = DefaultNearbyRadiusKm
	}
	if !(q.RadiusKm > 0 && q.RadiusKm <= MaxNearbyRadiusKm) {
		return validationError("radius_km must be greater than 0 and at most %v", MaxNearbyRadiusKm)
	}
	if q.Limit == 0 {
		q.Limit = DefaultNearbyLimit
	}
	if q.Limit < 1 || q.Limit > MaxNearbyLimit {
		return validationError("limit must be between 1 and %d", MaxNearbyLimit)
	}
	return nil
}

// NearbyTicker returns up to Limit companies within RadiusKm of Ticker's
// headquarters, excluding Ticker itself. The location comes from the geo
// index, falling back to the time-series store. ErrNotFound is returned when
// neither has coordinates.
func (e *Engine) NearbyTicker(ctx context.Context, q NearbyQuery) (models.SpatialResult, error) {
	if err := q.normalize(); err != nil {
		return models.SpatialResult{}, err
	}
	return e.nearby.Get(ctx, q)
}

func (e *Engine) nearbyQuery(ctx context.Context, q NearbyQuery) (models.SpatialResult, error) {
	start := time.Now()
	if err := q.normalize(); err != nil {
		return models.SpatialResult{}, err
	}

	center, err := e.locate(ctx, q.Ticker)
	if err != nil {
		return models.SpatialResult{}, err
	}

	result := models.SpatialResult{
		Query:    "nearby_ticker",
		Ticker:   q.Ticker,
		Center:   &models.GeoPoint{Latitude: center.Lat, Longitude: center.Lng},
		RadiusKm: q.RadiusKm,
	}

	hits, err := e.index.Radius(ctx, center, q.RadiusKm, q.Limit+1)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("ticker", q.Ticker).Msg("Nearby search failed, returning degraded result")
		result.Degraded = true
		finish("nearby_ticker", start, &result)
		return result, nil
	}

	others := hits[:0]
	for _, h := range hits {
		if h.Ticker != q.Ticker {
			others = append(others, h)
		}
	}
	if len(others) > q.Limit {
		others = others[:q.Limit]
	}
	result.Companies = hitsToCompanies(others)

	if q.IncludeMarketData && !e.enrich(ctx, result.Companies) {
		result.Degraded = true
	}
	finish("nearby_ticker", start, &result)
	return result, nil
}

// locate resolves a ticker's coordinates from the index, then the store.
func (e *Engine) locate(ctx context.Context, ticker string) (geo.Point, error) {
	loc, found, err := e.index.Get(ctx, ticker)
	if err != nil {
		logging.Ctx(ctx).Info().Err(err).Str("ticker", ticker).Msg("Index lookup failed, trying time-series store")
	}
	if err == nil && found {
		return loc.Point(), nil
	}

	company, err := e.store.Company(ctx, ticker)
	if errors.Is(err, database.ErrNotFound) {
		return geo.Point{}, fmt.Errorf("ticker %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return geo.Point{}, fmt.Errorf("locate %s: %w", ticker, err)
	}
	if !company.HasLocation() {
		return geo.Point{}, fmt.Errorf("location data for ticker %s: %w", ticker, ErrNotFound)
	}
	return geo.Point{Lat: *company.Latitude, Lng: *company.Longitude}, nil
}
