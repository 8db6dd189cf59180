// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/geomarket/config.yaml",
	"/etc/geomarket/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{},
			RateLimitReqs:     120,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Security: SecurityConfig{},
		Database: DatabaseConfig{
			Path:            "/data/geomarket.duckdb",
			MaxMemory:       "1GB",
			Threads:         0, // runtime.NumCPU()
			MaxOpenConns:    0, // runtime.NumCPU()
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 5 * time.Minute,
			SeedSampleData:  false,
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats",
			MaxMemory:      256 << 20,
			MaxStore:       1 << 30,
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			EventsEnabled:  true,
			EventsTopic:    "market.events",
			QueueGroup:     "geomarket",
			DurableName:    "geomarket-cache",
		},
		Breakers: BreakersConfig{
			TimeSeries:  BreakerConfig{FailureThreshold: 20, RecoveryTimeout: 15 * time.Second},
			KVStore:     BreakerConfig{FailureThreshold: 10, RecoveryTimeout: 30 * time.Second},
			CallTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Namespace:         "geomarket",
			Version:           "v1",
			L1MaxEntries:      1000,
			L1TTLCap:          60 * time.Second,
			L1Eviction:        "quartile",
			DefaultTTL:        5 * time.Minute,
			Backend:           CacheBackendNATS,
			Bucket:            "geomarket_cache",
			BucketMaxTTL:      24 * time.Hour,
			BadgerDir:         "",
			SkipCacheOnError:  true,
			WarmInterval:      5 * time.Minute,
			WarmRetryInterval: time.Minute,
			WarmTickers:       []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA"},
			WarmRate:          5,
		},
		Spatial: SpatialConfig{
			CircleTTL:           20 * time.Minute,
			PolygonTTL:          30 * time.Minute,
			StateTTL:            time.Hour,
			RegionTTL:           10 * time.Minute,
			PolygonBufferKm:     5,
			OverfetchFactor:     3,
			RegionThreshold:     20,
			RegionRowsPerEntity: 100,
			FanoutLimit:         8,
			IndexBucket:         "geomarket_geo",
			IndexCellSizeKm:     100,
			IndexMaxCells:       2048,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf with layered sources.
//
// Priority (highest to lowest):
//  1. Environment variables
//  2. Config file (config.yaml)
//  3. Default values
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// normalize canonicalizes case-insensitive values after loading.
func (c *Config) normalize() {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Cache.L1Eviction = strings.ToLower(strings.TrimSpace(c.Cache.L1Eviction))
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	for i, t := range c.Cache.WarmTickers {
		c.Cache.WarmTickers[i] = strings.ToUpper(strings.TrimSpace(t))
	}
}

// findConfigFile returns $CONFIG_PATH if it exists, otherwise the first
// existing entry of DefaultConfigPaths, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
	"cache.warm_tickers",
}

// processSliceFields converts comma-separated env strings into slices.
// Values that are already slices (from YAML) are left untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",

	// Security
	"operator_api_key":      "security.operator_api_key",
	"operator_api_key_hash": "security.operator_api_key_hash",

	// Database
	"duckdb_path":               "database.path",
	"duckdb_max_memory":         "database.max_memory",
	"duckdb_threads":            "database.threads",
	"duckdb_max_open_conns":     "database.max_open_conns",
	"duckdb_max_idle_conns":     "database.max_idle_conns",
	"duckdb_conn_max_lifetime":  "database.conn_max_lifetime",
	"duckdb_conn_max_idle_time": "database.conn_max_idle_time",
	"seed_sample_data":          "database.seed_sample_data",

	// NATS
	"nats_url":              "nats.url",
	"nats_embedded":         "nats.embedded_server",
	"nats_store_dir":        "nats.store_dir",
	"nats_max_memory":       "nats.max_memory",
	"nats_max_store":        "nats.max_store",
	"nats_max_reconnects":   "nats.max_reconnects",
	"nats_reconnect_wait":   "nats.reconnect_wait",
	"market_events_enabled": "nats.events_enabled",
	"market_events_topic":   "nats.events_topic",
	"nats_queue_group":      "nats.queue_group",
	"nats_durable_name":     "nats.durable_name",

	// Circuit breakers
	"timeseries_failure_threshold": "breakers.timeseries.failure_threshold",
	"timeseries_recovery_timeout":  "breakers.timeseries.recovery_timeout",
	"kvstore_failure_threshold":    "breakers.kvstore.failure_threshold",
	"kvstore_recovery_timeout":     "breakers.kvstore.recovery_timeout",
	"breaker_call_timeout":         "breakers.call_timeout",

	// Cache
	"cache_namespace":           "cache.namespace",
	"cache_version":             "cache.version",
	"cache_l1_max_entries":      "cache.l1_max_entries",
	"cache_l1_ttl_cap":          "cache.l1_ttl_cap",
	"cache_l1_eviction":         "cache.l1_eviction",
	"cache_default_ttl":         "cache.default_ttl",
	"cache_backend":             "cache.backend",
	"cache_bucket":              "cache.bucket",
	"cache_bucket_max_ttl":      "cache.bucket_max_ttl",
	"cache_badger_dir":          "cache.badger_dir",
	"cache_skip_on_error":       "cache.skip_cache_on_error",
	"cache_warm_interval":       "cache.warm_interval",
	"cache_warm_retry_interval": "cache.warm_retry_interval",
	"cache_warm_tickers":        "cache.warm_tickers",
	"cache_warm_rate":           "cache.warm_rate",

	// Spatial
	"spatial_circle_ttl":     "spatial.circle_ttl",
	"spatial_polygon_ttl":    "spatial.polygon_ttl",
	"spatial_state_ttl":      "spatial.state_ttl",
	"spatial_region_ttl":     "spatial.region_ttl",
	"polygon_buffer_km":      "spatial.polygon_buffer_km",
	"polygon_overfetch":      "spatial.overfetch_factor",
	"region_threshold":       "spatial.region_threshold",
	"region_rows_per_entity": "spatial.region_rows_per_entity",
	"spatial_fanout_limit":   "spatial.fanout_limit",
	"geo_index_bucket":       "spatial.index_bucket",
	"geo_index_cell_size_km": "spatial.index_cell_size_km",
	"geo_index_max_cells":    "spatial.index_max_cells",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return "" and are ignored.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
