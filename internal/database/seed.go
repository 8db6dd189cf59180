// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package database

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/models"
)

// SeedDays is how many daily bars Seed writes per company.
const SeedDays = 30

type sampleCompany struct {
	ticker, name, address, city, state, sector string
	lat, lng, basePrice                         float64
}

var sampleCompanies = []sampleCompany{
	{"AAPL", "Apple Inc.", "One Apple Park Way", "Cupertino", "CA", "Technology", 37.3349, -122.0090, 190},
	{"GOOGL", "Alphabet Inc.", "1600 Amphitheatre Parkway", "Mountain View", "CA", "Communication Services", 37.4220, -122.0841, 140},
	{"NVDA", "NVIDIA Corporation", "2788 San Tomas Expressway", "Santa Clara", "CA", "Technology", 37.3708, -121.9644, 480},
	{"META", "Meta Platforms Inc.", "1 Hacker Way", "Menlo Park", "CA", "Communication Services", 37.4847, -122.1477, 330},
	{"MSFT", "Microsoft Corporation", "One Microsoft Way", "Redmond", "WA", "Technology", 47.6396, -122.1283, 370},
	{"AMZN", "Amazon.com Inc.", "410 Terry Avenue North", "Seattle", "WA", "Consumer Discretionary", 47.6223, -122.3366, 150},
	{"TSLA", "Tesla Inc.", "1 Tesla Road", "Austin", "TX", "Consumer Discretionary", 30.2218, -97.6163, 240},
	{"XOM", "Exxon Mobil Corporation", "22777 Springwoods Village Parkway", "Spring", "TX", "Energy", 30.0950, -95.4305, 105},
	{"JPM", "JPMorgan Chase & Co.", "383 Madison Avenue", "New York", "NY", "Financials", 40.7557, -73.9755, 170},
	{"GS", "The Goldman Sachs Group Inc.", "200 West Street", "New York", "NY", "Financials", 40.7146, -74.0144, 380},
	{"IBM", "International Business Machines", "1 New Orchard Road", "Armonk", "NY", "Technology", 41.1077, -73.7207, 160},
	{"KO", "The Coca-Cola Company", "One Coca-Cola Plaza", "Atlanta", "GA", "Consumer Staples", 33.7710, -84.3963, 60},
	{"BA", "The Boeing Company", "929 Long Bridge Drive", "Arlington", "VA", "Industrials", 38.8638, -77.0553, 210},
	{"BAC", "Bank of America Corporation", "100 North Tryon Street", "Charlotte", "NC", "Financials", 35.2271, -80.8431, 33},
}

// Seed inserts a fixed set of well-known companies and SeedDays of
// deterministic daily bars ending today (UTC).
func (db *DB) Seed(ctx context.Context) error {
	logging.Info().Int("companies", len(sampleCompanies)).Msg("Seeding sample market data")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for _, s := range sampleCompanies {
		lat, lng := s.lat, s.lng
		if err := db.UpsertCompany(ctx, models.Company{
			Ticker:    s.ticker,
			Name:      s.name,
			Address:   s.address,
			City:      s.city,
			State:     s.state,
			Sector:    s.sector,
			Latitude:  &lat,
			Longitude: &lng,
		}); err != nil {
			return err
		}

		if _, err := db.InsertBars(ctx, syntheticBars(s.ticker, s.basePrice, today, SeedDays)); err != nil {
			return err
		}
	}
	return nil
}

// syntheticBars generates a reproducible random walk for ticker.
func syntheticBars(ticker string, base float64, last time.Time, days int) []models.Bar {
	h := fnv.New64a()
	_, _ = h.Write([]byte(ticker))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	bars := make([]models.Bar, 0, days)
	price := base
	for i := days - 1; i >= 0; i-- {
		open := price
		price = math.Max(1, price*(1+(rng.Float64()-0.5)*0.04))
		high := math.Max(open, price) * (1 + rng.Float64()*0.01)
		low := math.Min(open, price) * (1 - rng.Float64()*0.01)
		bars = append(bars, models.Bar{
			Ticker:    ticker,
			Timestamp: last.AddDate(0, 0, -i),
			Open:      round2(open),
			High:      round2(high),
			Low:       round2(low),
			Close:     round2(price),
			Volume:    1_000_000 + rng.Int63n(50_000_000),
		})
	}
	return bars
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
