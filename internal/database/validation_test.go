// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/geomarket/internal/models"
)

func TestInvalidTickersNeverReachTheStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	bad := []string{"", "TOO-LONG-TICKER", "AAPL'--", "A B", "ABCDEFGHIJK", "💥"}
	for _, ticker := range bad {
		t.Run(ticker, func(t *testing.T) {
			if _, err := db.LatestBar(ctx, ticker); !errors.Is(err, ErrInvalidTicker) {
				t.Errorf("LatestBar err = %v", err)
			}
			if _, err := db.Company(ctx, ticker); !errors.Is(err, ErrInvalidTicker) {
				t.Errorf("Company err = %v", err)
			}
			if err := db.UpsertCompany(ctx, models.Company{Ticker: ticker, Name: "x"}); !errors.Is(err, ErrInvalidTicker) {
				t.Errorf("UpsertCompany err = %v", err)
			}
		})
	}

	if got := db.Breaker().Snapshot().Requests; got != 0 {
		t.Errorf("breaker saw %d requests for rejected input", got)
	}
}

func TestSearchCompanies(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	if err := db.Seed(ctx); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		q       string
		want    []string
		wantErr error
	}{
		{"exact ticker first", "goog", []string{"GOOGL"}, nil},
		{"name substring", "bank", []string{"BAC"}, nil},
		{"case insensitive", "MICROSOFT", []string{"MSFT"}, nil},
		{"percent is literal", "%", nil, nil},
		{"underscore is literal", "_", nil, nil},
		{"comment injection", "'; DROP TABLE companies;--", nil, ErrUnsafeQuery},
		{"union injection", "x' UNION SELECT name FROM companies", nil, ErrUnsafeQuery},
		{"empty", "   ", nil, ErrUnsafeQuery},
		{"too long", "abcdefghijabcdefghijabcdefghijabcdefghijabcdefghijk", nil, ErrUnsafeQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.SearchCompanies(ctx, tt.q, 10)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d companies, want %v", len(got), tt.want)
			}
			for i, c := range got {
				if c.Ticker != tt.want[i] {
					t.Errorf("result %d = %s, want %s", i, c.Ticker, tt.want[i])
				}
			}
		})
	}

	// The table survived the injection attempts.
	if _, err := db.Company(ctx, "AAPL"); err != nil {
		t.Errorf("companies table damaged: %v", err)
	}
}
