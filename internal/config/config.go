// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Database DatabaseConfig `koanf:"database"`
	NATS     NATSConfig     `koanf:"nats"`
	Breakers BreakersConfig `koanf:"breakers"`
	Cache    CacheConfig    `koanf:"cache"`
	Spatial  SpatialConfig  `koanf:"spatial"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed origins. Empty allows none; "*" allows all.
	CORSOrigins []string `koanf:"cors_origins"`

	// Per-client request budget on the query endpoints.
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds the operator credential that guards the cache
// management endpoints.
//
// Environment Variables:
//   - OPERATOR_API_KEY: plain key, compared in constant time
//   - OPERATOR_API_KEY_HASH: bcrypt hash of the key; takes precedence
type SecurityConfig struct {
	OperatorAPIKey     string `koanf:"operator_api_key"`
	OperatorAPIKeyHash string `koanf:"operator_api_key_hash"`
}

// DevelopmentMode reports whether no operator key is configured, in which
// case the operator endpoints are open.
func (s SecurityConfig) DevelopmentMode() bool {
	return s.OperatorAPIKey == "" && s.OperatorAPIKeyHash == ""
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB worker count. Zero uses runtime.NumCPU().
	Threads int `koanf:"threads"`

	// MaxOpenConns caps the pool. Zero uses runtime.NumCPU().
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`

	// SeedSampleData loads demo companies and bars into an empty database.
	SeedSampleData bool `koanf:"seed_sample_data"`
}

// NATSConfig holds NATS connection, embedded server and market event
// subscription settings.
type NATSConfig struct {
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`

	EventsEnabled bool   `koanf:"events_enabled"`
	EventsTopic   string `koanf:"events_topic"`
	QueueGroup    string `koanf:"queue_group"`
	DurableName   string `koanf:"durable_name"`
}

// BreakerConfig tunes one circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold"`
	RecoveryTimeout  time.Duration `koanf:"recovery_timeout"`
}

// BreakersConfig holds the per-backend breakers.
type BreakersConfig struct {
	TimeSeries BreakerConfig `koanf:"timeseries"`
	KVStore    BreakerConfig `koanf:"kvstore"`

	// CallTimeout bounds every guarded invocation.
	CallTimeout time.Duration `koanf:"call_timeout"`
}

// Cache backend names.
const (
	CacheBackendNATS   = "nats"
	CacheBackendBadger = "badger"
	CacheBackendNone   = "none"
)

// CacheConfig holds tiered cache settings.
type CacheConfig struct {
	Namespace string `koanf:"namespace"`
	Version   string `koanf:"version"`

	L1MaxEntries int           `koanf:"l1_max_entries"`
	L1TTLCap     time.Duration `koanf:"l1_ttl_cap"`
	L1Eviction   string        `koanf:"l1_eviction"`
	DefaultTTL   time.Duration `koanf:"default_ttl"`

	// Backend selects the L2 tier: nats, badger or none.
	Backend      string        `koanf:"backend"`
	Bucket       string        `koanf:"bucket"`
	BucketMaxTTL time.Duration `koanf:"bucket_max_ttl"`

	// BadgerDir is the Badger data directory. Empty runs Badger in memory.
	BadgerDir string `koanf:"badger_dir"`

	// SkipCacheOnError stops loader failures from being cached.
	SkipCacheOnError bool `koanf:"skip_cache_on_error"`

	WarmInterval      time.Duration `koanf:"warm_interval"`
	WarmRetryInterval time.Duration `koanf:"warm_retry_interval"`
	WarmTickers       []string      `koanf:"warm_tickers"`
	WarmRate          float64       `koanf:"warm_rate"`
}

// SpatialConfig holds spatial query and geo index settings.
type SpatialConfig struct {
	CircleTTL  time.Duration `koanf:"circle_ttl"`
	PolygonTTL time.Duration `koanf:"polygon_ttl"`
	StateTTL   time.Duration `koanf:"state_ttl"`
	RegionTTL  time.Duration `koanf:"region_ttl"`

	PolygonBufferKm     float64 `koanf:"polygon_buffer_km"`
	OverfetchFactor     int     `koanf:"overfetch_factor"`
	RegionThreshold     int     `koanf:"region_threshold"`
	RegionRowsPerEntity int     `koanf:"region_rows_per_entity"`
	FanoutLimit         int     `koanf:"fanout_limit"`

	IndexBucket     string  `koanf:"index_bucket"`
	IndexCellSizeKm float64 `koanf:"index_cell_size_km"`
	IndexMaxCells   int     `koanf:"index_max_cells"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, an optional config file and the
// environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
