// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package spatial

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/geomarket/internal/geo"
	"github.com/tomtom215/geomarket/internal/geoindex"
)

var manhattanSquare = [][]float64{{40, -74}, {41, -74}, {41, -73}, {40, -73}, {40, -74}}

func TestPolygon_ManhattanSquare(t *testing.T) {
	index := newFakeIndex(loc("CENTER", 40.5, -73.5), loc("NORTH", 50, -73.5))
	e := newTestEngine(index, newFakeStore(), Config{})

	res, err := e.Polygon(context.Background(), PolygonQuery{Coordinates: manhattanSquare, Limit: 10})
	mustNoError(t, err)

	if diff := cmp.Diff([]string{"CENTER"}, tickersOf(res.Companies)); diff != "" {
		t.Fatalf("companies (-want +got):\n%s", diff)
	}
	if d := res.Companies[0].DistanceKm; d == nil || *d != 0 {
		t.Errorf("distance = %v, want 0", d)
	}
	if res.Degraded || res.Count != 1 || res.Vertices != 4 {
		t.Errorf("result = %+v", res)
	}

	calls := index.radiusCalls()
	if len(calls) != 1 {
		t.Fatalf("radius calls = %d", len(calls))
	}
	if calls[0].limit != 30 {
		t.Errorf("coarse stage limit = %d, want limit x 3", calls[0].limit)
	}
	// Half the buffered box's larger side is about 62 km; the corners of
	// the box lie about 77 km from its center.
	if calls[0].radiusKm < 62 || calls[0].radiusKm > 90 {
		t.Errorf("coarse radius = %.2f km", calls[0].radiusKm)
	}
}

func TestPolygon_OpenRingMatchesClosedRing(t *testing.T) {
	index := newFakeIndex(loc("CENTER", 40.5, -73.5), loc("EDGE", 40.9, -73.1))
	e := newTestEngine(index, newFakeStore(), Config{})
	ctx := context.Background()

	closed, err := e.Polygon(ctx, PolygonQuery{Coordinates: manhattanSquare})
	mustNoError(t, err)
	open, err := e.Polygon(ctx, PolygonQuery{Coordinates: manhattanSquare[:4]})
	mustNoError(t, err)

	if diff := cmp.Diff(tickersOf(closed.Companies), tickersOf(open.Companies)); diff != "" {
		t.Errorf("open and closed rings differ:\n%s", diff)
	}
}

func TestPolygon_TruncatesAfterFiltering(t *testing.T) {
	var locs []geoindex.Location
	for i := 0; i < 10; i++ {
		locs = append(locs, loc(fmt.Sprintf("IN%d", i), 40.1+float64(i)*0.08, -73.5))
	}
	e := newTestEngine(newFakeIndex(locs...), newFakeStore(), Config{})

	res, err := e.Polygon(context.Background(), PolygonQuery{Coordinates: manhattanSquare, Limit: 3})
	mustNoError(t, err)
	if res.Count != 3 {
		t.Fatalf("count = %d, want 3", res.Count)
	}
	for i := 1; i < len(res.Companies); i++ {
		if *res.Companies[i].DistanceKm < *res.Companies[i-1].DistanceKm {
			t.Errorf("not sorted by centroid distance: %v", tickersOf(res.Companies))
		}
	}
}

// Every indexed point inside a random polygon is found by the polygon
// query: the coarse search never under-covers the polygon.
func TestPolygon_CoarseStageNeverLosesInsidePoints(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for round := 0; round < 40; round++ {
		c := geo.Point{Lat: -50 + rng.Float64()*100, Lng: -150 + rng.Float64()*300}
		maxR := 0.2 + rng.Float64()*3
		pg := starPolygon(rng, c, maxR)

		coords := make([][]float64, len(pg))
		for i, p := range pg {
			coords[i] = []float64{p.Lat, p.Lng}
		}

		box := geo.Bounds(pg)
		var locs []geoindex.Location
		inside := map[string]bool{}
		for i := 0; i < 150; i++ {
			p := geo.Point{
				Lat: box.MinLat + rng.Float64()*(box.MaxLat-box.MinLat),
				Lng: box.MinLng + rng.Float64()*(box.MaxLng-box.MinLng),
			}
			ticker := fmt.Sprintf("T%d", i)
			locs = append(locs, loc(ticker, p.Lat, p.Lng))
			if geo.PointInPolygon(p, pg) {
				inside[ticker] = true
			}
		}

		e := newTestEngine(newFakeIndex(locs...), newFakeStore(), Config{})
		res, err := e.Polygon(context.Background(), PolygonQuery{Coordinates: coords, Limit: len(locs)})
		mustNoError(t, err)

		if res.Count != len(inside) {
			t.Fatalf("round %d: found %d of %d inside points", round, res.Count, len(inside))
		}
		for _, company := range res.Companies {
			if !inside[company.Ticker] {
				t.Fatalf("round %d: %s returned but outside polygon", round, company.Ticker)
			}
		}
	}
}

func starPolygon(rng *rand.Rand, c geo.Point, maxR float64) geo.Polygon {
	n := 3 + rng.Intn(10)
	pg := make(geo.Polygon, 0, n+1)
	for k := 0; k < n; k++ {
		theta := 2 * math.Pi * float64(k) / float64(n)
		r := maxR * (0.3 + 0.7*rng.Float64())
		pg = append(pg, geo.Point{Lat: c.Lat + r*math.Sin(theta), Lng: c.Lng + r*math.Cos(theta)})
	}
	return append(pg, pg[0])
}

func TestPolygon_IndexFailureDegrades(t *testing.T) {
	index := newFakeIndex(loc("CENTER", 40.5, -73.5))
	index.err = errors.New("connection refused")
	e := newTestEngine(index, newFakeStore(), Config{})
	ctx := context.Background()

	res, err := e.Polygon(ctx, PolygonQuery{Coordinates: manhattanSquare})
	mustNoError(t, err)
	if !res.Degraded || res.Count != 0 || res.Companies == nil {
		t.Fatalf("result = %+v, want empty degraded result", res)
	}

	// Degraded results are not cached: the next call reaches the index.
	index.mu.Lock()
	index.err = nil
	index.mu.Unlock()

	res, err = e.Polygon(ctx, PolygonQuery{Coordinates: manhattanSquare})
	mustNoError(t, err)
	if res.Degraded || res.Count != 1 {
		t.Errorf("after recovery = %+v", res)
	}
}

func TestPolygon_Validation(t *testing.T) {
	index := newFakeIndex()
	e := newTestEngine(index, newFakeStore(), Config{})

	tooMany := make([][]float64, MaxRequestVertices+1)
	for i := range tooMany {
		theta := 2 * math.Pi * float64(i) / float64(len(tooMany))
		tooMany[i] = []float64{math.Sin(theta), math.Cos(theta)}
	}

	tests := []struct {
		name string
		q    PolygonQuery
	}{
		{"two vertices", PolygonQuery{Coordinates: [][]float64{{0, 0}, {1, 1}}}},
		{"repeated vertices", PolygonQuery{Coordinates: [][]float64{{0, 0}, {0, 0}, {1, 1}}}},
		{"malformed pair", PolygonQuery{Coordinates: [][]float64{{0, 0}, {1}, {1, 1}}}},
		{"latitude out of range", PolygonQuery{Coordinates: [][]float64{{0, 0}, {91, 0}, {1, 1}}}},
		{"too many vertices", PolygonQuery{Coordinates: tooMany}},
		{"limit too large", PolygonQuery{Coordinates: manhattanSquare, Limit: MaxQueryLimit + 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Polygon(context.Background(), tt.q); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
	if n := len(index.radiusCalls()); n != 0 {
		t.Errorf("index called %d times for invalid requests", n)
	}
}
