// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package cache

import (
	"context"
	"errors"
	"strings"
)

// Logical key prefixes shared by loaders and the invalidator.
const (
	PrefixLatest      = "latest:"
	PrefixBars        = "bars:"
	PrefixSpatial     = "spatial:"
	PrefixCompany     = "company:"
	KeyMarketOverview = "market:overview"
)

// Invalidator clears groups of related keys after the underlying data
// changes. Every method clears L2 by pattern and then empties L1.
type Invalidator struct {
	cache *Tiered
}

// NewInvalidator returns an Invalidator for c.
func NewInvalidator(c *Tiered) *Invalidator {
	return &Invalidator{cache: c}
}

// Ticker clears price data cached for ticker, and the market overview.
func (inv *Invalidator) Ticker(ctx context.Context, ticker string) (int, error) {
	t := strings.ToUpper(ticker)
	return inv.clear(ctx,
		"*"+PrefixLatest+t,
		"*"+PrefixBars+t+":*",
		"*"+KeyMarketOverview+"*",
	)
}

// Spatial clears every cached spatial query result and every cached
// company profile, since both carry locations.
func (inv *Invalidator) Spatial(ctx context.Context) (int, error) {
	return inv.clear(ctx, "*"+PrefixSpatial+"*", "*"+PrefixCompany+"*")
}

// MarketOverview clears the cached market overview.
func (inv *Invalidator) MarketOverview(ctx context.Context) (int, error) {
	return inv.clear(ctx, "*"+KeyMarketOverview+"*")
}

func (inv *Invalidator) clear(ctx context.Context, patterns ...string) (int, error) {
	total := 0
	var errs []error
	for _, p := range patterns {
		n, err := inv.cache.ClearPattern(ctx, p)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	inv.cache.ClearL1()
	return total, errors.Join(errs...)
}
