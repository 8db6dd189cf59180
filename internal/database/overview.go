// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/geomarket/internal/models"
)

// MarketOverview returns store-wide counts and the five highest-volume
// tickers on the most recent trading day.
func (db *DB) MarketOverview(ctx context.Context) (models.MarketOverview, error) {
	out := models.MarketOverview{TopVolume: []models.VolumeLeader{}}

	err := db.run(ctx, "overview", "ohlcv", func(ctx context.Context) error {
		var latest sql.NullTime
		row := db.conn.QueryRowContext(ctx, `SELECT
			(SELECT count(*) FROM companies),
			(SELECT count(*) FROM ohlcv),
			(SELECT max(ts) FROM ohlcv)`)
		if err := row.Scan(&out.Companies, &out.Bars, &latest); err != nil {
			return err
		}
		if !latest.Valid {
			return nil
		}
		ts := latest.Time.UTC()
		out.LatestTS = &ts

		rows, err := db.conn.QueryContext(ctx, `SELECT o.ticker, COALESCE(c.name, ''),
				COALESCE(o.close, 0), COALESCE(o.volume, 0)
			FROM ohlcv o LEFT JOIN companies c ON c.ticker = o.ticker
			WHERE CAST(o.ts AS DATE) = CAST(? AS DATE)
			ORDER BY o.volume DESC NULLS LAST, o.ticker
			LIMIT 5`, ts)
		if err != nil {
			return err
		}
		defer closeWithLog(rows, "rows")

		for rows.Next() {
			var v models.VolumeLeader
			if err := rows.Scan(&v.Ticker, &v.Name, &v.Close, &v.Volume); err != nil {
				return err
			}
			out.TopVolume = append(out.TopVolume, v)
		}
		return rows.Err()
	})
	if err != nil {
		return models.MarketOverview{}, fmt.Errorf("market overview: %w", err)
	}

	out.ComputedAt = time.Now().UTC()
	return out, nil
}
