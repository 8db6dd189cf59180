// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tomtom215/geomarket/internal/database/query"
	"github.com/tomtom215/geomarket/internal/geo"
	"github.com/tomtom215/geomarket/internal/models"
	"github.com/tomtom215/geomarket/internal/validation"
)

const companyColumns = `ticker, name, COALESCE(address, ''), COALESCE(city, ''), COALESCE(state, ''),
	COALESCE(sector, ''), latitude, longitude, COALESCE(updated_at, TIMESTAMP '1970-01-01')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (models.Company, error) {
	var (
		c        models.Company
		lat, lng sql.NullFloat64
	)
	if err := row.Scan(&c.Ticker, &c.Name, &c.Address, &c.City, &c.State, &c.Sector, &lat, &lng, &c.UpdatedAt); err != nil {
		return c, err
	}
	if lat.Valid && lng.Valid {
		c.Latitude, c.Longitude = &lat.Float64, &lng.Float64
	}
	return c, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// UpsertCompany inserts or replaces a company row. The ticker and state are
// normalized; coordinates, when present, must be valid.
func (db *DB) UpsertCompany(ctx context.Context, c models.Company) error {
	ticker, err := validation.NormalizeTicker(c.Ticker)
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("company %s: name is required", ticker)
	}
	var state string
	if c.State != "" {
		if state, err = validation.NormalizeState(c.State); err != nil {
			return err
		}
	}
	if c.HasLocation() {
		if _, err := geo.ValidatePoint(*c.Latitude, *c.Longitude); err != nil {
			return err
		}
	}

	stmt := `INSERT OR REPLACE INTO companies
		(ticker, name, address, city, state, latitude, longitude, sector, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, current_timestamp)`

	return db.run(ctx, "upsert", "companies", func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx, stmt,
			ticker, c.Name, c.Address, c.City, state,
			nullFloat(c.Latitude), nullFloat(c.Longitude), c.Sector)
		return err
	})
}

// Company returns one company. It wraps ErrNotFound when the ticker has no row.
func (db *DB) Company(ctx context.Context, ticker string) (models.Company, error) {
	ticker, err := validation.NormalizeTicker(ticker)
	if err != nil {
		return models.Company{}, err
	}

	var c models.Company
	err = db.run(ctx, "select", "companies", func(ctx context.Context) error {
		row := db.conn.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE ticker = ?`, ticker)
		var err error
		c, err = scanCompany(row)
		return err
	})
	if IsNoRows(err) {
		return models.Company{}, fmt.Errorf("company %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return models.Company{}, fmt.Errorf("company %s: %w", ticker, err)
	}
	return c, nil
}

// CompaniesInState returns up to limit geocoded companies headquartered in
// state, ordered by ticker.
func (db *DB) CompaniesInState(ctx context.Context, state string, limit int) ([]models.Company, error) {
	state, err := validation.NormalizeState(state)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	stmt, args := query.From("companies", companyColumns).
		Eq("state", state).
		NotNull("latitude", "longitude").
		OrderBy("ticker").
		Limit(limit).
		Build()
	return db.queryCompanies(ctx, "select_state", stmt, args...)
}

// TickersInState returns every ticker headquartered in state.
func (db *DB) TickersInState(ctx context.Context, state string) ([]string, error) {
	state, err := validation.NormalizeState(state)
	if err != nil {
		return nil, err
	}

	var tickers []string
	err = db.run(ctx, "select_state_tickers", "companies", func(ctx context.Context) error {
		rows, err := db.conn.QueryContext(ctx, `SELECT ticker FROM companies WHERE state = ? ORDER BY ticker`, state)
		if err != nil {
			return err
		}
		defer closeWithLog(rows, "rows")

		tickers = tickers[:0]
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				return err
			}
			tickers = append(tickers, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("tickers in %s: %w", state, err)
	}
	return tickers, nil
}

// CompanyLocations returns every company that has coordinates.
func (db *DB) CompanyLocations(ctx context.Context) ([]models.Company, error) {
	stmt := `SELECT ` + companyColumns + ` FROM companies
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL ORDER BY ticker`
	return db.queryCompanies(ctx, "select_locations", stmt)
}

func (db *DB) queryCompanies(ctx context.Context, operation, stmt string, args ...any) ([]models.Company, error) {
	var out []models.Company
	err := db.run(ctx, operation, "companies", func(ctx context.Context) error {
		rows, err := db.conn.QueryContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		defer closeWithLog(rows, "rows")

		out = out[:0]
		for rows.Next() {
			c, err := scanCompany(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return out, nil
}
