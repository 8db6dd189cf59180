// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

/*
Package supervisor provides process supervision for Geomarket using suture v4.

The tree organizes long-running services into three layers:

	RootSupervisor ("geomarket")
	├── DataSupervisor ("data-layer")
	│   ├── cache-warmer
	│   ├── duckdb-checkpoint
	│   └── geoindex-resync (when a networked KV store is configured)
	├── MessagingSupervisor ("messaging-layer")
	│   └── market-event-consumer (when MARKET_EVENTS_ENABLED)
	└── APISupervisor ("api-layer")
	    └── http-server

Crashed services are restarted with suture's backoff. Supervisor events are
logged through sutureslog on the slog adapter of the logging package.

Usage in main.go:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logging.SourceSupervisor), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(warmer)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh

Service wrappers live in the services subpackage.
*/
package supervisor
