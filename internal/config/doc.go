// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

/*
Package config provides centralized configuration management for Geomarket.

# Configuration Sources

Configuration is layered with koanf, later layers overriding earlier ones:

 1. Struct defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, ./config.yaml, or /etc/geomarket/config.yaml
 3. Environment variables, mapped through an explicit table

The merged result is validated before it is returned.

# Configuration Structure

  - ServerConfig: HTTP listener, CORS and per-client rate limits
  - SecurityConfig: operator API key for the cache endpoints
  - DatabaseConfig: DuckDB time-series store
  - NATSConfig: NATS connection, embedded server and market event subscription
  - BreakersConfig: circuit breaker thresholds for each backend
  - CacheConfig: tiered cache, L2 backend selection and warming
  - SpatialConfig: query TTLs, region limits and the geo index
  - LoggingConfig: zerolog level and format

# Environment Variables

Selected variables (see envTransformFunc for the full table):

  - HTTP_PORT, HTTP_HOST, CORS_ORIGINS, RATE_LIMIT_REQUESTS
  - OPERATOR_API_KEY, OPERATOR_API_KEY_HASH
  - DUCKDB_PATH, DUCKDB_MAX_MEMORY, SEED_SAMPLE_DATA
  - NATS_URL, NATS_EMBEDDED, NATS_STORE_DIR, MARKET_EVENTS_ENABLED
  - TIMESERIES_FAILURE_THRESHOLD, KVSTORE_RECOVERY_TIMEOUT
  - CACHE_BACKEND, CACHE_L1_MAX_ENTRIES, CACHE_WARM_TICKERS
  - REGION_THRESHOLD, POLYGON_BUFFER_KM, GEO_INDEX_CELL_SIZE_KM
  - LOG_LEVEL, LOG_FORMAT

Comma-separated values feed the slice fields CORS_ORIGINS and
CACHE_WARM_TICKERS.

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	if cfg.Security.DevelopmentMode() {
	    logging.Warn().Msg("No operator API key configured")
	}
*/
package config
