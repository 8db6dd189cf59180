// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

// Package geo provides the pure geometry used by spatial queries:
// point-in-polygon, bounding boxes, great-circle distance and polygon
// filtering of candidate points.
//
// All coordinates are WGS84 degrees. Polygons are rings of (lat, lng)
// vertices; the longitude is treated as the x axis and latitude as y.
// Polygons crossing the antimeridian are not supported.
package geo

import (
	"math"
)

const (
	// EarthRadiusKm is the mean Earth radius used by Haversine.
	EarthRadiusKm = 6371.0

	// KmPerDegree approximates the length of one degree of latitude.
	KmPerDegree = 111.0
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Valid reports whether p is a finite coordinate within range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Polygon is a ring of vertices. After ValidatePolygon the first and last
// vertex are equal.
type Polygon []Point

// Closed reports whether the first and last vertex coincide.
func (pg Polygon) Closed() bool {
	return len(pg) > 1 && pg[0] == pg[len(pg)-1]
}

// vertices returns the ring without its closing vertex.
func (pg Polygon) vertices() []Point {
	if pg.Closed() {
		return pg[:len(pg)-1]
	}
	return pg
}

// Centroid returns the arithmetic mean of the distinct ring vertices.
func (pg Polygon) Centroid() Point {
	vs := pg.vertices()
	if len(vs) == 0 {
		return Point{}
	}
	var lat, lng float64
	for _, v := range vs {
		lat += v.Lat
		lng += v.Lng
	}
	n := float64(len(vs))
	return Point{Lat: lat / n, Lng: lng / n}
}

// BoundingBox is an axis-aligned box in degrees.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Point {
	return Point{Lat: (b.MinLat + b.MaxLat) / 2, Lng: (b.MinLng + b.MaxLng) / 2}
}

// Contains reports whether p lies inside or on the box.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Haversine returns the great-circle distance between a and b in kilometers.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
