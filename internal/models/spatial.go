// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package models

// SpatialCompany is a company returned by a spatial query.
//
// DistanceKm is measured from the query center (circle, nearby ticker) or
// from the polygon centroid (polygon). It is omitted for state queries.
type SpatialCompany struct {
	Ticker     string      `json:"ticker"`
	Name       string      `json:"name"`
	Address    string      `json:"address,omitempty"`
	Latitude   float64     `json:"latitude"`
	Longitude  float64     `json:"longitude"`
	DistanceKm *float64    `json:"distance_km,omitempty"`
	MarketData *MarketData `json:"market_data,omitempty"`
}

// SpatialResult is the response shape shared by every spatial query family.
//
// Degraded is true when a backend failure was suppressed and the result may
// be incomplete. An empty, non-degraded result is a true empty answer.
type SpatialResult struct {
	Query           string           `json:"query"`
	Count           int              `json:"count"`
	Companies       []SpatialCompany `json:"companies"`
	Degraded        bool             `json:"degraded"`
	ExecutionTimeMS int64            `json:"execution_time_ms"`

	Center   *GeoPoint `json:"center,omitempty"`
	RadiusKm float64   `json:"radius_km,omitempty"`
	State    string    `json:"state,omitempty"`
	Ticker   string    `json:"ticker,omitempty"`
	Vertices int       `json:"vertices,omitempty"`
}

// GeoPoint is a JSON latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Period is an inclusive YYYY-MM-DD date window.
type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// RegionStats aggregates prices over the companies in a region.
//
// The statistical fields are nil when the region is larger than the
// aggregation threshold (Aggregated false), when no rows matched, or when the
// aggregation failed (Degraded true).
type RegionStats struct {
	RegionType   string   `json:"region_type"`
	Description  string   `json:"region_description"`
	CompanyCount int      `json:"company_count"`
	Tickers      []string `json:"tickers,omitempty"`
	Period       Period   `json:"period"`

	AvgPrice    *float64 `json:"avg_price"`
	StdDevPrice *float64 `json:"std_dev_price"`
	MinPrice    *float64 `json:"min_price"`
	MaxPrice    *float64 `json:"max_price"`
	TotalVolume *int64   `json:"total_volume"`
	Samples     int      `json:"samples"`

	Aggregated      bool  `json:"aggregated"`
	Degraded        bool  `json:"degraded"`
	ExecutionTimeMS int64 `json:"execution_time_ms"`
}
