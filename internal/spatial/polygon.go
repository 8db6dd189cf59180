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
	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/models"
)

// MaxRequestVertices caps polygon requests. The geometry library itself
// accepts up to geo.MaxPolygonVertices.
const MaxRequestVertices = 100

// PolygonQuery selects companies inside a polygon given as [lat, lng] pairs.
type PolygonQuery struct {
	Coordinates       [][]float64 `json:"coordinates"`
	Limit             int         `json:"limit"`
	IncludeMarketData bool        `json:"include_market_data"`
}

func (q *PolygonQuery) normalize() (geo.Polygon, error) {
	if len(q.Coordinates) > MaxRequestVertices {
		return nil, validationError("polygon cannot have more than %d coordinates", MaxRequestVertices)
	}
	pg, err := geo.ValidatePolygon(q.Coordinates)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if q.Limit == 0 {
		q.Limit = DefaultQueryLimit
	}
	if q.Limit < 1 || q.Limit > MaxQueryLimit {
		return nil, validationError("limit must be between 1 and %d", MaxQueryLimit)
	}
	return pg, nil
}

// Polygon returns up to Limit companies inside the polygon, ordered by
// distance from its centroid. An index failure yields an empty degraded
// result instead of an error.
func (e *Engine) Polygon(ctx context.Context, q PolygonQuery) (models.SpatialResult, error) {
	if _, err := q.normalize(); err != nil {
		return models.SpatialResult{}, err
	}
	return e.polygon.Get(ctx, q)
}

func (e *Engine) polygonQuery(ctx context.Context, q PolygonQuery) (models.SpatialResult, error) {
	start := time.Now()
	pg, err := q.normalize()
	if err != nil {
		return models.SpatialResult{}, err
	}

	result := models.SpatialResult{Query: "polygon", Vertices: len(pg) - 1}
	companies, err := e.withinPolygon(ctx, pg, q.Limit)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Polygon candidate search failed, returning degraded result")
		result.Degraded = true
	} else {
		result.Companies = companies
		if q.IncludeMarketData && !e.enrich(ctx, result.Companies) {
			result.Degraded = true
		}
	}
	finish("polygon", start, &result)
	return result, nil
}

// withinPolygon runs the two-stage search. The coarse stage searches the
// circle covering the buffered bounding box for limit × overfetch
// candidates; the precise stage keeps those inside pg.
func (e *Engine) withinPolygon(ctx context.Context, pg geo.Polygon, limit int) ([]models.SpatialCompany, error) {
	box := geo.ExpandBoundingBox(geo.Bounds(pg), e.cfg.PolygonBufferKm)
	center, radiusKm := geo.CoveringCircle(box)

	hits, err := e.index.Radius(ctx, center, radiusKm, limit*e.cfg.OverfetchFactor)
	if err != nil {
		return nil, err
	}

	candidates := make([]geo.Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = geo.Candidate{ID: h.Ticker, Name: h.Name, Address: h.Address, Location: h.Point()}
	}

	inside := geo.FilterByPolygon(candidates, pg)
	if len(inside) > limit {
		inside = inside[:limit]
	}

	out := make([]models.SpatialCompany, len(inside))
	for i, c := range inside {
		out[i] = models.SpatialCompany{
			Ticker:     c.ID,
			Name:       c.Name,
			Address:    c.Address,
			Latitude:   c.Location.Lat,
			Longitude:  c.Location.Lng,
			DistanceKm: c.DistanceKm,
		}
	}
	return out, nil
}
