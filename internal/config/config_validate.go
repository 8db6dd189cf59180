// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/geomarket/internal/validation"
)

// Validate checks that the configuration is complete and within bounds.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateRateLimits,
		c.validateDatabase,
		c.validateNATS,
		c.validateBreakers,
		c.validateCache,
		c.validateSpatial,
		c.validateLogging,
	}

	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP_READ_TIMEOUT and HTTP_WRITE_TIMEOUT must be positive")
	}
	return nil
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Server.RateLimitDisabled {
		return nil
	}
	if c.Server.RateLimitReqs < minRateLimitRequests || c.Server.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Server.RateLimitWindow < minRateLimitWindow || c.Server.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validateDatabase validates DuckDB configuration
func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 || c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("DUCKDB_THREADS, DUCKDB_MAX_OPEN_CONNS and DUCKDB_MAX_IDLE_CONNS must not be negative")
	}
	return nil
}

// NATS limit constants
const (
	natsMinMemory = 16 * 1024 * 1024 // 16MB
	natsMinStore  = 64 * 1024 * 1024 // 64MB
)

// validateNATS validates NATS configuration. The URL is required even with
// the embedded server because clients connect through it.
func (c *Config) validateNATS() error {
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}

	if c.NATS.EmbeddedServer {
		if c.NATS.MaxMemory < natsMinMemory {
			return fmt.Errorf("NATS_MAX_MEMORY must be at least 16MB (16777216 bytes)")
		}
		if c.NATS.MaxStore < natsMinStore {
			return fmt.Errorf("NATS_MAX_STORE must be at least 64MB (67108864 bytes)")
		}
	}

	if c.NATS.EventsEnabled {
		if c.NATS.EventsTopic == "" || strings.ContainsAny(c.NATS.EventsTopic, " *>") {
			return fmt.Errorf("MARKET_EVENTS_TOPIC must be a literal subject, got %q", c.NATS.EventsTopic)
		}
		if c.NATS.DurableName == "" {
			return fmt.Errorf("NATS_DURABLE_NAME is required when market events are enabled")
		}
	}
	return nil
}

// validateNATSURL validates that the NATS URL is properly formatted
// Supports: nats://, tls://, and ws:// schemes with IP addresses/hostnames and optional ports
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222, nats.example.com)")
	}

	return nil
}

// validateBreakers validates circuit breaker configuration
func (c *Config) validateBreakers() error {
	breakers := map[string]BreakerConfig{
		"TIMESERIES": c.Breakers.TimeSeries,
		"KVSTORE":    c.Breakers.KVStore,
	}
	for name, b := range breakers {
		if b.FailureThreshold < 1 {
			return fmt.Errorf("%s_FAILURE_THRESHOLD must be at least 1", name)
		}
		if b.RecoveryTimeout <= 0 {
			return fmt.Errorf("%s_RECOVERY_TIMEOUT must be positive", name)
		}
	}
	if c.Breakers.CallTimeout < 0 {
		return fmt.Errorf("BREAKER_CALL_TIMEOUT must not be negative")
	}
	return nil
}

var (
	validCacheBackends = map[string]bool{CacheBackendNATS: true, CacheBackendBadger: true, CacheBackendNone: true}
	validEvictions     = map[string]bool{"quartile": true, "lru": true}
)

// validateCache validates tiered cache configuration
func (c *Config) validateCache() error {
	cc := c.Cache
	if !validCacheBackends[cc.Backend] {
		return fmt.Errorf("CACHE_BACKEND must be one of: nats, badger, none")
	}
	if !validEvictions[cc.L1Eviction] {
		return fmt.Errorf("CACHE_L1_EVICTION must be one of: quartile, lru")
	}
	if cc.Namespace == "" || cc.Version == "" {
		return fmt.Errorf("CACHE_NAMESPACE and CACHE_VERSION are required")
	}
	if strings.ContainsAny(cc.Namespace+cc.Version, ":*") {
		return fmt.Errorf("CACHE_NAMESPACE and CACHE_VERSION must not contain ':' or '*'")
	}
	if cc.L1MaxEntries < 1 {
		return fmt.Errorf("CACHE_L1_MAX_ENTRIES must be at least 1")
	}
	if cc.L1TTLCap <= 0 || cc.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_L1_TTL_CAP and CACHE_DEFAULT_TTL must be positive")
	}
	if cc.Backend == CacheBackendNATS && cc.Bucket == "" {
		return fmt.Errorf("CACHE_BUCKET is required for the nats backend")
	}
	if cc.WarmInterval < 0 || cc.WarmRetryInterval < 0 || cc.WarmRate < 0 {
		return fmt.Errorf("cache warm interval, retry interval and rate must not be negative")
	}
	for _, t := range cc.WarmTickers {
		if !validation.IsTicker(t) {
			return fmt.Errorf("CACHE_WARM_TICKERS contains an invalid ticker: %q", t)
		}
	}
	return nil
}

// validateSpatial validates spatial query configuration
func (c *Config) validateSpatial() error {
	s := c.Spatial
	if s.PolygonBufferKm < 0 {
		return fmt.Errorf("POLYGON_BUFFER_KM must not be negative")
	}
	if s.OverfetchFactor < 1 {
		return fmt.Errorf("POLYGON_OVERFETCH must be at least 1")
	}
	if s.RegionThreshold < 1 || s.RegionRowsPerEntity < 1 {
		return fmt.Errorf("REGION_THRESHOLD and REGION_ROWS_PER_ENTITY must be at least 1")
	}
	if s.FanoutLimit < 1 {
		return fmt.Errorf("SPATIAL_FANOUT_LIMIT must be at least 1")
	}
	if s.IndexBucket == "" {
		return fmt.Errorf("GEO_INDEX_BUCKET is required")
	}
	if s.IndexCellSizeKm <= 0 {
		return fmt.Errorf("GEO_INDEX_CELL_SIZE_KM must be positive")
	}
	if s.IndexMaxCells < 1 {
		return fmt.Errorf("GEO_INDEX_MAX_CELLS must be at least 1")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
