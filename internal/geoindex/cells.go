// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package geoindex

import (
	"fmt"
	"math"

	"github.com/tomtom215/geomarket/internal/geo"
)

// DefaultCellSizeKm is the approximate grid cell edge at the equator.
const DefaultCellSizeKm = 100.0

// Cell is one square of the latitude/longitude grid.
type Cell struct {
	X, Y int
}

// Key returns the KV key holding the cell's members.
func (c Cell) Key() string {
	return fmt.Sprintf("cell.%d.%d", c.X, c.Y)
}

// Grid divides the globe into cells of a fixed size in degrees.
type Grid struct {
	sizeDeg float64
}

// NewGrid returns a grid whose cells are roughly cellSizeKm on a side at the
// equator.
func NewGrid(cellSizeKm float64) Grid {
	if cellSizeKm <= 0 {
		cellSizeKm = DefaultCellSizeKm
	}
	return Grid{sizeDeg: cellSizeKm / geo.KmPerDegree}
}

// CellOf returns the cell containing p.
func (g Grid) CellOf(p geo.Point) Cell {
	lng := p.Lng
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return Cell{
		X: int(math.Floor(lng / g.sizeDeg)),
		Y: int(math.Floor(p.Lat / g.sizeDeg)),
	}
}

type lngRange struct{ lo, hi float64 }

// Covering returns every cell that may contain a point within radiusKm of
// center. It returns false when more than maxCells cells would be needed.
func (g Grid) Covering(center geo.Point, radiusKm float64, maxCells int) ([]Cell, bool) {
	dLat := radiusKm / geo.KmPerDegree
	minLat := math.Max(-90, center.Lat-dLat)
	maxLat := math.Min(90, center.Lat+dLat)

	ranges := g.lngRanges(center, radiusKm, minLat, maxLat)

	y0 := int(math.Floor(minLat / g.sizeDeg))
	y1 := int(math.Floor(maxLat / g.sizeDeg))

	total := 0
	for _, r := range ranges {
		total += int(math.Floor(r.hi/g.sizeDeg)) - int(math.Floor(r.lo/g.sizeDeg)) + 1
	}
	total *= y1 - y0 + 1
	if maxCells > 0 && total > maxCells {
		return nil, false
	}

	cells := make([]Cell, 0, total)
	for _, r := range ranges {
		x0 := int(math.Floor(r.lo / g.sizeDeg))
		x1 := int(math.Floor(r.hi / g.sizeDeg))
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				cells = append(cells, Cell{X: x, Y: y})
			}
		}
	}
	return cells, true
}

// lngRanges returns the longitude intervals a spherical cap of radiusKm
// around center spans, split at the antimeridian.
func (g Grid) lngRanges(center geo.Point, radiusKm, minLat, maxLat float64) []lngRange {
	full := []lngRange{{-180, 180}}
	if minLat <= -90 || maxLat >= 90 {
		return full
	}

	// Widest longitude offset of a cap with angular radius delta centered
	// at latitude phi: asin(sin(delta) / cos(phi)).
	delta := radiusKm / geo.EarthRadiusKm
	cosPhi := math.Cos(center.Lat * math.Pi / 180)
	ratio := math.Sin(math.Min(delta, math.Pi/2)) / cosPhi
	if delta >= math.Pi/2 || ratio >= 1 {
		return full
	}
	// Pad by one part in a thousand so grid rounding never loses an edge.
	dLng := math.Asin(ratio)*180/math.Pi*1.001 + 1e-9
	if dLng >= 180 {
		return full
	}

	lo, hi := center.Lng-dLng, center.Lng+dLng
	switch {
	case lo < -180:
		return []lngRange{{-180, hi}, {lo + 360, 180}}
	case hi > 180:
		return []lngRange{{lo, 180}, {-180, hi - 360}}
	default:
		return []lngRange{{lo, hi}}
	}
}
