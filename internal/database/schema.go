// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package database

import (
	"context"
	"fmt"
	"time"
)

const schemaTimeout = time.Minute

// ddl is applied in order on every open. Statements must be idempotent.
var ddl = []struct {
	name string
	sql  string
}{
	{"companies", `CREATE TABLE IF NOT EXISTS companies (
		ticker     VARCHAR PRIMARY KEY,
		name       VARCHAR NOT NULL,
		address    VARCHAR,
		city       VARCHAR,
		state      VARCHAR,
		latitude   DOUBLE,
		longitude  DOUBLE,
		sector     VARCHAR,
		updated_at TIMESTAMP DEFAULT current_timestamp
	)`},
	{"ohlcv", `CREATE TABLE IF NOT EXISTS ohlcv (
		ticker VARCHAR NOT NULL,
		ts     TIMESTAMP NOT NULL,
		open   DOUBLE,
		high   DOUBLE,
		low    DOUBLE,
		close  DOUBLE,
		volume BIGINT,
		PRIMARY KEY (ticker, ts)
	)`},
	// State lookups back the /state/{state} spatial route.
	{"idx_companies_state", `CREATE INDEX IF NOT EXISTS idx_companies_state ON companies(state)`},
	{"idx_ohlcv_ts", `CREATE INDEX IF NOT EXISTS idx_ohlcv_ts ON ohlcv(ts)`},
}

func (db *DB) ensureSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	for _, stmt := range ddl {
		if _, err := db.conn.ExecContext(ctx, stmt.sql); err != nil {
			return fmt.Errorf("schema %s: %w", stmt.name, err)
		}
	}
	return nil
}
