// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/geomarket/internal/database/query"
	"github.com/tomtom215/geomarket/internal/models"
	"github.com/tomtom215/geomarket/internal/validation"
)

// MaxBarsLimit caps Bars.
const MaxBarsLimit = 10000

const barColumns = `ticker, ts, COALESCE(open, 0), COALESCE(high, 0), COALESCE(low, 0), COALESCE(close, 0), COALESCE(volume, 0)`

func scanBar(row rowScanner) (models.Bar, error) {
	var b models.Bar
	err := row.Scan(&b.Ticker, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
	return b, err
}

// InsertBars writes bars in one transaction. A bar with the same ticker and
// timestamp replaces the stored one.
func (db *DB) InsertBars(ctx context.Context, bars []models.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	for i := range bars {
		t, err := validation.NormalizeTicker(bars[i].Ticker)
		if err != nil {
			return 0, fmt.Errorf("bar %d: %w", i, err)
		}
		bars[i].Ticker = t
	}

	err := db.run(ctx, "insert", "ohlcv", func(ctx context.Context) error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO ohlcv
			(ticker, ts, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer closeWithLog(stmt, "prepared statement")

		for _, b := range bars {
			if _, err := stmt.ExecContext(ctx, b.Ticker, b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("insert bars: %w", err)
	}
	return len(bars), nil
}

// LatestBar returns the most recent bar for ticker. It wraps ErrNotFound when
// the ticker has no bars.
func (db *DB) LatestBar(ctx context.Context, ticker string) (models.Bar, error) {
	ticker, err := validation.NormalizeTicker(ticker)
	if err != nil {
		return models.Bar{}, err
	}

	var bar models.Bar
	err = db.run(ctx, "select_latest", "ohlcv", func(ctx context.Context) error {
		row := db.conn.QueryRowContext(ctx,
			`SELECT `+barColumns+` FROM ohlcv WHERE ticker = ? ORDER BY ts DESC LIMIT 1`, ticker)
		var err error
		bar, err = scanBar(row)
		return err
	})
	if IsNoRows(err) {
		return models.Bar{}, fmt.Errorf("latest bar %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return models.Bar{}, fmt.Errorf("latest bar %s: %w", ticker, err)
	}
	return bar, nil
}

// Bars returns up to limit bars for ticker with start <= ts <= end, most
// recent first. A zero start or end leaves that side open.
func (db *DB) Bars(ctx context.Context, ticker string, start, end time.Time, limit int) ([]models.Bar, error) {
	ticker, err := validation.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxBarsLimit {
		limit = MaxBarsLimit
	}

	stmt, args := query.From("ohlcv", barColumns).
		Eq("ticker", ticker).
		TimeRange("ts", start, end).
		OrderBy("ts DESC").
		Limit(limit).
		Build()

	var bars []models.Bar
	err = db.run(ctx, "select_range", "ohlcv", func(ctx context.Context) error {
		rows, err := db.conn.QueryContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		defer closeWithLog(rows, "rows")

		bars = bars[:0]
		for rows.Next() {
			b, err := scanBar(rows)
			if err != nil {
				return err
			}
			bars = append(bars, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("bars %s: %w", ticker, err)
	}
	return bars, nil
}
