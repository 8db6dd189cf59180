// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package api

import (
	"strings"
	"time"

	"github.com/tomtom215/geomarket/internal/market"
	"github.com/tomtom215/geomarket/internal/spatial"
)

// Request structs carry go-playground/validator tags; the spatial engine
// re-checks the same limits, so these only produce earlier, field-level
// error messages. Coordinates are pointers so that a missing latitude is
// distinguishable from the equator.

// CircleRequest is the body of POST /spatial/circle.
type CircleRequest struct {
	Latitude          *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude         *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	RadiusKm          float64  `json:"radius_km" validate:"gt=0,lte=1000"`
	Limit             int      `json:"limit" validate:"omitempty,min=1,max=1000"`
	IncludeMarketData bool     `json:"include_market_data"`
}

func (r CircleRequest) query() spatial.CircleQuery {
	return spatial.CircleQuery{
		Latitude:          *r.Latitude,
		Longitude:         *r.Longitude,
		RadiusKm:          r.RadiusKm,
		Limit:             r.Limit,
		IncludeMarketData: r.IncludeMarketData,
	}
}

// PolygonRequest is the body of POST /spatial/polygon. Coordinates are
// [latitude, longitude] pairs.
type PolygonRequest struct {
	Coordinates       [][]float64 `json:"coordinates" validate:"required,min=3,max=100,dive,len=2"`
	Limit             int         `json:"limit" validate:"omitempty,min=1,max=1000"`
	IncludeMarketData bool        `json:"include_market_data"`
}

func (r PolygonRequest) query() spatial.PolygonQuery {
	return spatial.PolygonQuery{
		Coordinates:       r.Coordinates,
		Limit:             r.Limit,
		IncludeMarketData: r.IncludeMarketData,
	}
}

// NearbyTickerRequest is the body of POST /spatial/nearby-ticker.
type NearbyTickerRequest struct {
	Ticker            string  `json:"ticker" validate:"required,max=10"`
	RadiusKm          float64 `json:"radius_km" validate:"omitempty,gt=0,lte=500"`
	Limit             int     `json:"limit" validate:"omitempty,min=1,max=100"`
	IncludeMarketData bool    `json:"include_market_data"`
}

func (r NearbyTickerRequest) query() spatial.NearbyQuery {
	return spatial.NearbyQuery{
		Ticker:            r.Ticker,
		RadiusKm:          r.RadiusKm,
		Limit:             r.Limit,
		IncludeMarketData: r.IncludeMarketData,
	}
}

// RegionStatsRequest is the body of POST /spatial/regional-stats. Only the
// fields of the chosen region type are read.
type RegionStatsRequest struct {
	RegionType string `json:"region_type" validate:"required,oneof=circle polygon state"`

	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	RadiusKm  float64  `json:"radius_km" validate:"omitempty,gt=0,lte=1000"`

	Coordinates [][]float64 `json:"coordinates" validate:"required_if=RegionType polygon,omitempty,min=3,max=100,dive,len=2"`

	State string `json:"state" validate:"required_if=RegionType state,omitempty,len=2"`

	StartDate string `json:"start_date" validate:"omitempty,ymd"`
	EndDate   string `json:"end_date" validate:"omitempty,ymd"`
}

// missingCenter reports a circle region without both coordinates.
func (r RegionStatsRequest) missingCenter() bool {
	return r.RegionType == spatial.RegionCircle && (r.Latitude == nil || r.Longitude == nil)
}

func (r RegionStatsRequest) query() spatial.RegionQuery {
	q := spatial.RegionQuery{
		RegionType:  r.RegionType,
		RadiusKm:    r.RadiusKm,
		Coordinates: r.Coordinates,
		State:       r.State,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
	}
	if r.Latitude != nil {
		q.Latitude = *r.Latitude
	}
	if r.Longitude != nil {
		q.Longitude = *r.Longitude
	}
	return q
}

// HistoryRequest holds the query parameters of GET /market/{ticker}/history.
type HistoryRequest struct {
	Ticker string `json:"ticker" validate:"required,ticker"`
	Start  string `json:"start" validate:"omitempty,ymd"`
	End    string `json:"end" validate:"omitempty,ymd"`
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=1000"`
}

// BulkRequest is the body of POST /market/bulk-with-location. Tickers are
// upper-cased before validation. IncludeLocation defaults to true.
type BulkRequest struct {
	Tickers         []string `json:"tickers" validate:"required,min=1,max=50,dive,ticker"`
	StartDate       string   `json:"start_date" validate:"omitempty,ymd"`
	EndDate         string   `json:"end_date" validate:"omitempty,ymd"`
	LimitPerTicker  int      `json:"limit_per_ticker" validate:"omitempty,min=1,max=1000"`
	IncludeLocation *bool    `json:"include_location"`
}

func (r *BulkRequest) normalize() {
	for i, t := range r.Tickers {
		r.Tickers[i] = strings.ToUpper(strings.TrimSpace(t))
	}
}

func (r BulkRequest) query() market.BulkQuery {
	q := market.BulkQuery{
		Tickers:         r.Tickers,
		Limit:           r.LimitPerTicker,
		IncludeLocation: r.IncludeLocation == nil || *r.IncludeLocation,
	}
	q.Start, q.End = dayRange(r.StartDate, r.EndDate)
	return q
}

// dayRange turns inclusive YYYY-MM-DD bounds into UTC instants. Empty or
// unparsable bounds stay zero; the ymd tag has already checked the format.
func dayRange(startDate, endDate string) (start, end time.Time) {
	if startDate != "" {
		start, _ = time.Parse(time.DateOnly, startDate)
	}
	if endDate != "" {
		if d, err := time.Parse(time.DateOnly, endDate); err == nil {
			end = d.Add(24*time.Hour - time.Nanosecond)
		}
	}
	return start, end
}

// SearchRequest holds the query parameters of GET /companies/search.
type SearchRequest struct {
	Query string `json:"q" validate:"required,safesearch"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=100"`
}
