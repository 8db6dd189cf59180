// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

// Package database is the time-series gateway for Geomarket, backed by
// DuckDB through database/sql.
//
// # Schema
//
//   - companies: one row per ticker with the geocoded headquarters
//   - ohlcv: daily bars keyed by (ticker, ts)
//
// # Safety
//
// Every query is parameterized. Tickers are validated against
// ^[A-Z0-9]{1,10}$ after upper-casing and free-text search input is checked
// against a denylist of SQL keywords and comment sequences before it reaches
// a LIKE predicate. Rejections wrap ErrInvalidTicker or ErrUnsafeQuery and
// never reach the store.
//
// # Resilience
//
// All calls run through the "timeseries" circuit breaker with a per-call
// timeout. sql.ErrNoRows counts as a success. The pool is bounded, so
// callers block on an exhausted pool instead of opening new connections.
//
// # Usage
//
//	db, err := database.New(&cfg.Database, breakers.Get(breaker.TimeSeries))
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	bar, err := db.LatestBar(ctx, "AAPL")
package database
