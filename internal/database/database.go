// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/config"
	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/metrics"
)

// DB wraps the DuckDB connection pool. Every query runs through the
// time-series circuit breaker.
type DB struct {
	conn    *sql.DB
	cfg     *config.DatabaseConfig
	breaker *breaker.Breaker
}

// IsNoRows reports whether err is sql.ErrNoRows. A query that finds nothing
// is a healthy answer, so breakers guarding the store count it as a success.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// New opens the database, sizes the pool and creates the schema.
// b guards every query; nil creates a default time-series breaker.
func New(cfg *config.DatabaseConfig, b *breaker.Breaker) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	// Extensions are not needed; disabling autoload avoids network lookups
	// in restricted environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, maxMemory)
	if cfg.Path == ":memory:" {
		connStr = fmt.Sprintf(":memory:?threads=%d&max_memory=%s", numThreads, maxMemory)
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if b == nil {
		b = breaker.New(breaker.Settings{Name: breaker.TimeSeries, IsSuccessful: IsNoRows})
	}

	db := &DB{conn: conn, cfg: cfg, breaker: b}
	db.configureConnectionPool()

	if err := db.ensureSchema(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.SeedSampleData {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := db.Seed(ctx); err != nil {
			closeQuietly(conn)
			return nil, fmt.Errorf("failed to seed sample data: %w", err)
		}
	}

	return db, nil
}

// configureConnectionPool sizes the pool. Callers block when every
// connection is busy.
func (db *DB) configureConnectionPool() {
	maxOpen := db.cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = runtime.NumCPU()
	}
	maxIdle := db.cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 2
	}
	lifetime := db.cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	idleTime := db.cfg.ConnMaxIdleTime
	if idleTime <= 0 {
		idleTime = 5 * time.Minute
	}

	db.conn.SetMaxOpenConns(maxOpen)
	db.conn.SetMaxIdleConns(maxIdle)
	db.conn.SetConnMaxLifetime(lifetime)
	db.conn.SetConnMaxIdleTime(idleTime)
}

// Breaker returns the breaker guarding the store.
func (db *DB) Breaker() *breaker.Breaker {
	return db.breaker
}

// Close checkpoints the WAL and closes the pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	cancel()
	return db.conn.Close()
}

// Ping checks that the store answers. It runs through the breaker so a dead
// store also opens the circuit.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.run(ctx, "ping", "", func(ctx context.Context) error {
		return db.conn.PingContext(ctx)
	})
}

// Checkpoint forces a WAL checkpoint.
func (db *DB) Checkpoint(ctx context.Context) error {
	err := db.run(ctx, "checkpoint", "", func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx, "CHECKPOINT")
		return err
	})
	if err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// run executes work through the breaker and records query metrics.
func (db *DB) run(ctx context.Context, operation, table string, work func(ctx context.Context) error) error {
	start := time.Now()
	err := db.breaker.Do(ctx, work)

	recorded := err
	if IsNoRows(err) {
		recorded = nil
	}
	metrics.RecordDBQuery(operation, table, time.Since(start), recorded)

	if err != nil && !IsNoRows(err) {
		logging.Ctx(ctx).Debug().Err(err).Str("operation", operation).Msg("Time-series query failed")
	}
	return err
}
