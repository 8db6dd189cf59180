// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func ptr[T any](v T) *T { return &v }

func TestCompany_HasLocation(t *testing.T) {
	tests := []struct {
		name string
		c    Company
		want bool
	}{
		{"both", Company{Latitude: ptr(40.7), Longitude: ptr(-74.0)}, true},
		{"zero coordinates count", Company{Latitude: ptr(0.0), Longitude: ptr(0.0)}, true},
		{"missing longitude", Company{Latitude: ptr(40.7)}, false},
		{"missing latitude", Company{Longitude: ptr(-74.0)}, false},
		{"neither", Company{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.HasLocation(); got != tt.want {
				t.Errorf("HasLocation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpatialResult_OmitsUnsetQueryFields(t *testing.T) {
	res := SpatialResult{
		Query:     "state",
		Count:     1,
		Companies: []SpatialCompany{{Ticker: "AAPL", Name: "Apple Inc.", Latitude: 37.33, Longitude: -122.01}},
		State:     "CA",
	}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, absent := range []string{"center", "radius_km", "ticker", "vertices"} {
		if _, ok := raw[absent]; ok {
			t.Errorf("%q present in %s", absent, data)
		}
	}
	if raw["degraded"] != false {
		t.Errorf("degraded = %v, want explicit false", raw["degraded"])
	}

	company := raw["companies"].([]any)[0].(map[string]any)
	if _, ok := company["distance_km"]; ok {
		t.Errorf("distance_km present for a state query: %s", data)
	}
}

func TestRegionStats_NullAggregatesWithoutSamples(t *testing.T) {
	data, err := json.Marshal(RegionStats{RegionType: "state", Description: "CA"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, field := range []string{"avg_price", "std_dev_price", "min_price", "max_price", "total_volume"} {
		v, ok := raw[field]
		if !ok {
			t.Errorf("%q missing, want explicit null", field)
			continue
		}
		if v != nil {
			t.Errorf("%q = %v, want null", field, v)
		}
	}
}

func TestEnvelopes(t *testing.T) {
	ok := Success([]string{"AAPL"}, 1500*time.Microsecond)
	if ok.Status != StatusSuccess || ok.Error != nil || ok.Metadata.QueryTimeMS != 1 {
		t.Errorf("Success() = %+v", ok)
	}
	if ok.Metadata.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp not UTC: %v", ok.Metadata.Timestamp)
	}

	fail := Failure(&APIError{Code: "NOT_FOUND", Message: "no bars for ZZZZ"})
	data, err := json.Marshal(fail)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if raw["status"] != StatusError || raw["data"] != nil {
		t.Errorf("failure envelope = %s", data)
	}
	meta := raw["metadata"].(map[string]any)
	if _, ok := meta["query_time_ms"]; ok {
		t.Errorf("query_time_ms present on failure: %s", data)
	}
}
