// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

/*
Package models defines the data structures shared by the store, the query
engines and the HTTP API.

Key Components:

  - Company, Bar: rows of the time-series store
  - MarketOverview: aggregate snapshot of the whole market
  - SpatialResult, SpatialCompany: results of circle, polygon, state and
    nearby-ticker queries
  - RegionStats: price and volume aggregates over a region
  - APIResponse: the standard response envelope

All types are plain values and carry JSON tags. They are cached as JSON, so
renaming a tag orphans existing cache entries until the cache version is
bumped.
*/
package models
