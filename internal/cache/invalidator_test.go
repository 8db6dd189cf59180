// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestInvalidator(t *testing.T) {
	seed := []string{
		"latest:AAPL",
		"latest:AAPLX",
		"bars:AAPL:9f2c",
		"bars:MSFT:11aa",
		"spatial:circle:ab",
		"spatial:polygon:cd",
		"company:AAPL",
		"market:overview",
	}

	tests := []struct {
		name string
		run  func(context.Context, *Invalidator) (int, error)
		want []string
	}{
		{
			name: "ticker",
			run:  func(ctx context.Context, inv *Invalidator) (int, error) { return inv.Ticker(ctx, "aapl") },
			want: []string{"bars:MSFT:11aa", "company:AAPL", "latest:AAPLX", "spatial:circle:ab", "spatial:polygon:cd"},
		},
		{
			name: "spatial",
			run:  func(ctx context.Context, inv *Invalidator) (int, error) { return inv.Spatial(ctx) },
			want: []string{"bars:AAPL:9f2c", "bars:MSFT:11aa", "latest:AAPL", "latest:AAPLX", "market:overview"},
		},
		{
			name: "market overview",
			run:  func(ctx context.Context, inv *Invalidator) (int, error) { return inv.MarketOverview(ctx) },
			want: []string{"bars:AAPL:9f2c", "bars:MSFT:11aa", "company:AAPL", "latest:AAPL", "latest:AAPLX", "spatial:circle:ab", "spatial:polygon:cd"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			c, l1, l2 := newTestTiered(clock)
			ctx := context.Background()
			for _, k := range seed {
				c.Set(ctx, k, []byte(`1`), time.Minute)
			}

			n, err := tt.run(ctx, NewInvalidator(c))
			if err != nil {
				t.Fatal(err)
			}
			if n != len(seed)-len(tt.want) {
				t.Errorf("cleared %d, want %d", n, len(seed)-len(tt.want))
			}
			if l1.Len() != 0 {
				t.Errorf("L1 holds %d entries, want 0", l1.Len())
			}

			var got []string
			for _, k := range l2.keys() {
				got = append(got, k[len(c.Key("")):])
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("remaining keys (-want +got):\n%s", diff)
			}
		})
	}
}
