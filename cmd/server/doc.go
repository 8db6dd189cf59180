// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

/*
Package main is the entry point for the Geomarket server.

Geomarket answers spatial questions about listed companies ("which tickers
are headquartered within 50 km of this point, and how are they trading?")
on top of a DuckDB time-series store, a NATS JetStream geo index and a
two-tier cache.

# Application Architecture

The server initializes components in the following order:

 1. Configuration: layered Koanf v2 load (defaults, config file, environment)
 2. Circuit breakers: one per backend (timeseries, kvstore)
 3. NATS: embedded JetStream server unless NATS_EMBEDDED=false
 4. Time-series store: DuckDB, optionally seeded with sample data
 5. Cache: in-process L1 plus the configured L2 (nats, badger or none)
 6. Geo index: JetStream KV buckets, loaded from the store when empty
 7. Spatial engine and market service
 8. Market event consumer (when MARKET_EVENTS_ENABLED=true)
 9. HTTP server: chi router with CORS, rate limiting and Prometheus metrics

Startup failures are fatal. A failed initial geo index load is logged and
repaired by the hourly resync.

# Supervisor Tree

	geomarket
	├── data-layer
	│   ├── cache-warmer
	│   ├── duckdb-checkpoint
	│   └── geoindex-resync
	├── messaging-layer
	│   └── market-event-consumer
	└── api-layer
	    └── http-server

Each service is restarted by suture with backoff when it fails.

# Configuration

Highest priority wins:
  - Environment variables
  - Config file (CONFIG_PATH, or config.yaml in the working directory)
  - Built-in defaults

Common settings:

	HTTP_PORT=8080
	DUCKDB_PATH=/data/geomarket.duckdb
	NATS_URL=nats://127.0.0.1:4222
	CACHE_BACKEND=nats
	OPERATOR_API_KEY=<key>

See internal/config for the complete reference.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops every
service within the shutdown timeout and reports any that did not stop.
The store is then checkpointed and backends are closed in reverse
construction order.

# Usage Examples

Development with sample data and open operator endpoints:

	export SEED_SAMPLE_DATA=true
	go run ./cmd/server

Against an external NATS cluster with a Badger L2:

	export NATS_EMBEDDED=false NATS_URL=nats://nats:4222
	export CACHE_BACKEND=badger CACHE_BADGER_DIR=/data/cache
	./geomarket
*/
package main
