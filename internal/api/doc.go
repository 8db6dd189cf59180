// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

/*
Package api provides the HTTP surface of Geomarket on a chi router.

# Routes

Spatial queries (POST bodies are JSON):

	POST /api/v1/spatial/circle          companies within a radius, nearest first
	POST /api/v1/spatial/polygon         companies inside a polygon
	GET  /api/v1/spatial/state/{state}   companies headquartered in a US state
	POST /api/v1/spatial/nearby-ticker   companies near another company
	POST /api/v1/spatial/regional-stats  price statistics over a region

Market data:

	GET /api/v1/market/overview
	GET /api/v1/market/{ticker}/latest
	GET /api/v1/market/{ticker}/history?start=&end=&limit=
	GET /api/v1/companies/search?q=&limit=

Operations:

	GET  /api/v1/health/live
	GET  /api/v1/health/ready
	GET  /api/v1/cache/stats             operator key required
	POST /api/v1/cache/clear?pattern=    operator key required
	GET  /metrics

# Errors

Every response uses the models.APIResponse envelope. Failures map to:

  - 400 VALIDATION_ERROR: malformed input, rejected before any backend call
  - 401/403: missing or wrong X-API-Key on operator routes
  - 404 NOT_FOUND: unknown ticker or empty region
  - 429 RATE_LIMIT_EXCEEDED: per-route budget exhausted
  - 503 SERVICE_UNAVAILABLE: a circuit breaker is open; Retry-After is set
  - 502 DEPENDENCY_ERROR: any other backend failure

Degraded spatial results are 200 responses with "degraded": true.
*/
package api
