// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

// Package query builds the parameterized SELECT statements of the database
// package.
//
//	stmt, args := query.From("ohlcv", "ts, close").
//		Eq("ticker", ticker).
//		TimeRange("ts", start, end).
//		OrderBy("ts DESC").
//		Limit(100).
//		Build()
//	rows, err := conn.QueryContext(ctx, stmt, args...)
//
// Values are always bound as arguments. Table, column and ordering strings
// must be literals; never pass user input as one.
package query
