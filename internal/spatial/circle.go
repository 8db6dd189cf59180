// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package spatial

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/geomarket/internal/geo"
	"github.com/tomtom215/geomarket/internal/models"
)

// Request limits.
const (
	MaxCircleRadiusKm = 1000.0
	MaxQueryLimit     = 1000
	DefaultQueryLimit = 100
)

// CircleQuery selects companies within RadiusKm of a point.
type CircleQuery struct {
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	RadiusKm          float64 `json:"radius_km"`
	Limit             int     `json:"limit"`
	IncludeMarketData bool    `json:"include_market_data"`
}

func (q *CircleQuery) normalize() (geo.Point, error) {
	center, err := geo.ValidatePoint(q.Latitude, q.Longitude)
	if err != nil {
		return center, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if !(q.RadiusKm > 0 && q.RadiusKm <= MaxCircleRadiusKm) {
		return center, validationError("radius_km must be greater than 0 and at most %v", MaxCircleRadiusKm)
	}
	if q.Limit == 0 {
		q.Limit = DefaultQueryLimit
	}
	if q.Limit < 1 || q.Limit > MaxQueryLimit {
		return center, validationError("limit must be between 1 and %d", MaxQueryLimit)
	}
	return center, nil
}

// Circle returns up to Limit companies within the circle, nearest first.
// It is exact by construction: the index radius search needs no geometric
// post-filter.
func (e *Engine) Circle(ctx context.Context, q CircleQuery) (models.SpatialResult, error) {
	if _, err := q.normalize(); err != nil {
		return models.SpatialResult{}, err
	}
	return e.circle.Get(ctx, q)
}

func (e *Engine) circleQuery(ctx context.Context, q CircleQuery) (models.SpatialResult, error) {
	start := time.Now()
	center, err := q.normalize()
	if err != nil {
		return models.SpatialResult{}, err
	}

	hits, err := e.index.Radius(ctx, center, q.RadiusKm, q.Limit)
	if err != nil {
		return models.SpatialResult{}, fmt.Errorf("circle query: %w", err)
	}

	result := models.SpatialResult{
		Query:     "circle",
		Companies: hitsToCompanies(hits),
		Center:    &models.GeoPoint{Latitude: center.Lat, Longitude: center.Lng},
		RadiusKm:  q.RadiusKm,
	}
	if q.IncludeMarketData && !e.enrich(ctx, result.Companies) {
		result.Degraded = true
	}
	finish("circle", start, &result)
	return result, nil
}
