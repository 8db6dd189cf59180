// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package geo

import (
	"sort"
)

// Candidate is a located entity produced by a coarse radius search.
type Candidate struct {
	ID         string   `json:"ticker"`
	Name       string   `json:"name,omitempty"`
	Address    string   `json:"address,omitempty"`
	Location   Point    `json:"location"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// FilterByPolygon keeps the candidates inside pg. Candidates with invalid
// coordinates are dropped. Each kept candidate gets DistanceKm set to its
// distance from the polygon centroid (two decimals), and the result is
// sorted by that distance, nearest first. The input slice is not modified.
func FilterByPolygon(candidates []Candidate, pg Polygon) []Candidate {
	if len(pg.vertices()) < 3 {
		return nil
	}

	centroid := pg.Centroid()
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Location.Valid() || !PointInPolygon(c.Location, pg) {
			continue
		}
		d := Round2(Haversine(c.Location, centroid))
		c.DistanceKm = &d
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].DistanceKm < *out[j].DistanceKm
	})
	return out
}
