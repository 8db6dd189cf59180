// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package models

import "time"

// Company is a listed company and its geocoded headquarters.
//
// Latitude and Longitude are nil when the address has not been geocoded.
type Company struct {
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city,omitempty"`
	State     string    `json:"state,omitempty"`
	Sector    string    `json:"sector,omitempty"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasLocation reports whether both coordinates are set.
func (c Company) HasLocation() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// Bar is one OHLCV sample.
type Bar struct {
	Ticker    string    `json:"ticker"`
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// MarketData is the latest-price enrichment attached to spatial results.
type MarketData struct {
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"ts"`
}

// VolumeLeader is one row of the market overview's top-volume list.
type VolumeLeader struct {
	Ticker string  `json:"ticker"`
	Name   string  `json:"name"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// MarketOverview summarizes the time-series store.
type MarketOverview struct {
	Companies  int            `json:"companies"`
	Bars       int64          `json:"bars"`
	LatestTS   *time.Time     `json:"latest_ts,omitempty"`
	TopVolume  []VolumeLeader `json:"top_volume"`
	ComputedAt time.Time      `json:"computed_at"`
}

// SeriesLocation is the company name and headquarters attached to a bulk
// series.
type SeriesLocation struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// TickerSeries is one ticker's bars in a bulk response, most recent first.
// Location is nil when it was not requested or the company is unknown.
type TickerSeries struct {
	Ticker   string          `json:"ticker"`
	Location *SeriesLocation `json:"location,omitempty"`
	Bars     []Bar           `json:"bars"`
}
