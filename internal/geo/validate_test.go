// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidatePolygon(t *testing.T) {
	tooMany := make([][]float64, MaxPolygonVertices+1)
	for i := range tooMany {
		tooMany[i] = []float64{float64(i%90) / 2, float64(i%180) / 2}
	}

	tests := []struct {
		name    string
		coords  [][]float64
		want    Polygon
		wantErr bool
	}{
		{
			name:   "open ring is closed",
			coords: [][]float64{{0, 0}, {0, 1}, {1, 1}},
			want:   Polygon{{0, 0}, {0, 1}, {1, 1}, {0, 0}},
		},
		{
			name:   "closed ring kept",
			coords: [][]float64{{0, 0}, {0, 1}, {1, 1}, {0, 0}},
			want:   Polygon{{0, 0}, {0, 1}, {1, 1}, {0, 0}},
		},
		{name: "empty", coords: nil, wantErr: true},
		{name: "two points", coords: [][]float64{{0, 0}, {1, 1}}, wantErr: true},
		{name: "too many", coords: tooMany, wantErr: true},
		{name: "three points two distinct", coords: [][]float64{{0, 0}, {1, 1}, {0, 0}}, wantErr: true},
		{name: "short pair", coords: [][]float64{{0, 0}, {1}, {1, 1}}, wantErr: true},
		{name: "long pair", coords: [][]float64{{0, 0}, {1, 1, 1}, {1, 1}}, wantErr: true},
		{name: "latitude out of range", coords: [][]float64{{0, 0}, {91, 1}, {1, 1}}, wantErr: true},
		{name: "longitude out of range", coords: [][]float64{{0, 0}, {1, -181}, {1, 1}}, wantErr: true},
		{name: "nan", coords: [][]float64{{0, 0}, {math.NaN(), 1}, {1, 1}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePolygon(tt.coords)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPolygon) {
					t.Fatalf("err = %v, want ErrInvalidPolygon", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			if !got.Closed() {
				t.Error("result is not closed")
			}
		})
	}
}

func TestValidatePoint(t *testing.T) {
	if _, err := ValidatePoint(45, 90); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, p := range [][2]float64{{-90.1, 0}, {0, 180.5}, {math.Inf(1), 0}} {
		if _, err := ValidatePoint(p[0], p[1]); !errors.Is(err, ErrInvalidPoint) {
			t.Errorf("ValidatePoint(%v) err = %v", p, err)
		}
	}
}

func TestCentroidIgnoresClosingVertex(t *testing.T) {
	open := Polygon{{40, -74}, {41, -74}, {41, -73}, {40, -73}}
	closed := append(append(Polygon{}, open...), open[0])
	if open.Centroid() != closed.Centroid() {
		t.Errorf("centroids differ: %v vs %v", open.Centroid(), closed.Centroid())
	}
	if got := closed.Centroid(); got != (Point{40.5, -73.5}) {
		t.Errorf("Centroid() = %v", got)
	}
}
