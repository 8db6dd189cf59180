// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

/*
Package services adapts Geomarket's long-running loops to suture.Service.

HTTPServerService binds its own listener and drives an *http.Server through
Serve and Shutdown, so bind errors surface as service failures and the
supervisor can rebind after a crash. PeriodicService calls a function on a
fixed interval; the data layer uses it for DuckDB checkpoints and geo index
resyncs:

	tree.AddDataService(services.NewPeriodicService("duckdb-checkpoint", 10*time.Minute, false, db.Checkpoint))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

cache.Warmer and eventprocessor.Consumer implement Serve themselves and are
added to the tree directly.
*/
package services
