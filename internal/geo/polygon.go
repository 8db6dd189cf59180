// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package geo

import (
	"math"
)

// boundaryEpsilon absorbs float error when testing whether a point lies on an edge.
const boundaryEpsilon = 1e-12

// PointInPolygon reports whether p lies inside pg using ray casting.
// Points on an edge or vertex are inside. Polygons with fewer than three
// vertices contain nothing.
func PointInPolygon(p Point, pg Polygon) bool {
	vs := pg.vertices()
	n := len(vs)
	if n < 3 {
		return false
	}

	x, y := p.Lng, p.Lat
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := vs[i].Lng, vs[i].Lat
		xj, yj := vs[j].Lng, vs[j].Lat

		if onSegment(x, y, xi, yi, xj, yj) {
			return true
		}

		// Horizontal edges never cross a horizontal ray.
		if yi == yj {
			continue
		}
		if (yi > y) != (yj > y) {
			xCross := (xj-xi)*(y-yi)/(yj-yi) + xi
			if x < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

func onSegment(x, y, x1, y1, x2, y2 float64) bool {
	cross := (x-x1)*(y2-y1) - (y-y1)*(x2-x1)
	scale := math.Max(1, math.Max(math.Abs(x2-x1), math.Abs(y2-y1)))
	if math.Abs(cross) > boundaryEpsilon*scale {
		return false
	}
	return x >= math.Min(x1, x2)-boundaryEpsilon && x <= math.Max(x1, x2)+boundaryEpsilon &&
		y >= math.Min(y1, y2)-boundaryEpsilon && y <= math.Max(y1, y2)+boundaryEpsilon
}

// Bounds returns the min/max of all vertex coordinates. An empty polygon
// yields the zero box.
func Bounds(pg Polygon) BoundingBox {
	if len(pg) == 0 {
		return BoundingBox{}
	}
	box := BoundingBox{MinLat: pg[0].Lat, MinLng: pg[0].Lng, MaxLat: pg[0].Lat, MaxLng: pg[0].Lng}
	for _, v := range pg[1:] {
		box.MinLat = math.Min(box.MinLat, v.Lat)
		box.MinLng = math.Min(box.MinLng, v.Lng)
		box.MaxLat = math.Max(box.MaxLat, v.Lat)
		box.MaxLng = math.Max(box.MaxLng, v.Lng)
	}
	return box
}

// ExpandBoundingBox grows box by bufferKm on every side. Latitude uses
// 111 km per degree and longitude 111*cos(center latitude) km per degree.
// Results are clamped to ±90 and ±180. A non-positive buffer returns box
// unchanged.
func ExpandBoundingBox(box BoundingBox, bufferKm float64) BoundingBox {
	if bufferKm <= 0 {
		return box
	}

	latBuffer := bufferKm / KmPerDegree

	centerLat := (box.MinLat + box.MaxLat) / 2
	kmPerDegreeLng := KmPerDegree * math.Cos(centerLat*math.Pi/180)
	lngBuffer := 360.0
	if kmPerDegreeLng > 1e-9 {
		lngBuffer = bufferKm / kmPerDegreeLng
	}

	return BoundingBox{
		MinLat: math.Max(box.MinLat-latBuffer, -90),
		MinLng: math.Max(box.MinLng-lngBuffer, -180),
		MaxLat: math.Min(box.MaxLat+latBuffer, 90),
		MaxLng: math.Min(box.MaxLng+lngBuffer, 180),
	}
}

// CoveringCircle returns a center and radius whose circle contains every
// point of box. The radius is at least half the box's larger side at
// 111 km per degree, raised to the farthest corner's great-circle distance.
func CoveringCircle(box BoundingBox) (Point, float64) {
	center := box.Center()

	radius := math.Max(box.MaxLat-box.MinLat, box.MaxLng-box.MinLng) / 2 * KmPerDegree
	corners := [4]Point{
		{Lat: box.MinLat, Lng: box.MinLng},
		{Lat: box.MinLat, Lng: box.MaxLng},
		{Lat: box.MaxLat, Lng: box.MinLng},
		{Lat: box.MaxLat, Lng: box.MaxLng},
	}
	for _, c := range corners {
		radius = math.Max(radius, Haversine(center, c))
	}
	return center, radius
}
