// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package geo

import (
	"errors"
	"fmt"
	"math"
)

// Polygon vertex limits accepted by ValidatePolygon.
const (
	MinPolygonVertices = 3
	MaxPolygonVertices = 1000
)

// ErrInvalidPolygon is wrapped by every ValidatePolygon rejection.
var ErrInvalidPolygon = errors.New("invalid polygon")

// ErrInvalidPoint reports an out-of-range or non-finite coordinate.
var ErrInvalidPoint = errors.New("invalid coordinate")

// ValidatePoint checks that lat and lng are finite and in range.
func ValidatePoint(lat, lng float64) (Point, error) {
	p := Point{Lat: lat, Lng: lng}
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return p, fmt.Errorf("%w: latitude %v must be between -90 and 90", ErrInvalidPoint, lat)
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) || lng < -180 || lng > 180 {
		return p, fmt.Errorf("%w: longitude %v must be between -180 and 180", ErrInvalidPoint, lng)
	}
	return p, nil
}

// ValidatePolygon converts [lat, lng] pairs into a closed Polygon.
//
// It rejects fewer than 3 or more than 1000 coordinates, pairs that do not
// have exactly two elements, out-of-range coordinates, and rings with fewer
// than three distinct vertices. An open ring is closed by appending its
// first vertex.
func ValidatePolygon(coords [][]float64) (Polygon, error) {
	if len(coords) < MinPolygonVertices {
		return nil, fmt.Errorf("%w: must have at least %d coordinates", ErrInvalidPolygon, MinPolygonVertices)
	}
	if len(coords) > MaxPolygonVertices {
		return nil, fmt.Errorf("%w: cannot have more than %d coordinates", ErrInvalidPolygon, MaxPolygonVertices)
	}

	pg := make(Polygon, 0, len(coords)+1)
	distinct := make(map[Point]struct{}, len(coords))
	for i, c := range coords {
		if len(c) != 2 {
			return nil, fmt.Errorf("%w: coordinate %d must be [latitude, longitude]", ErrInvalidPolygon, i)
		}
		p, err := ValidatePoint(c[0], c[1])
		if err != nil {
			return nil, fmt.Errorf("%w: coordinate %d: %w", ErrInvalidPolygon, i, err)
		}
		pg = append(pg, p)
		distinct[p] = struct{}{}
	}

	if len(distinct) < MinPolygonVertices {
		return nil, fmt.Errorf("%w: must have at least %d distinct vertices", ErrInvalidPolygon, MinPolygonVertices)
	}

	if !pg.Closed() {
		pg = append(pg, pg[0])
	}
	return pg, nil
}
