// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/cache"
	"github.com/tomtom215/geomarket/internal/market"
	"github.com/tomtom215/geomarket/internal/models"
	"github.com/tomtom215/geomarket/internal/spatial"
)

type fakeSpatial struct {
	mu     sync.Mutex
	err    error
	result models.SpatialResult
	stats  models.RegionStats

	circle  *spatial.CircleQuery
	polygon *spatial.PolygonQuery
	state   *spatial.StateQuery
	nearby  *spatial.NearbyQuery
	region  *spatial.RegionQuery
}

func (f *fakeSpatial) Circle(_ context.Context, q spatial.CircleQuery) (models.SpatialResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.circle = &q
	return f.result, f.err
}

func (f *fakeSpatial) Polygon(_ context.Context, q spatial.PolygonQuery) (models.SpatialResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polygon = &q
	return f.result, f.err
}

func (f *fakeSpatial) State(_ context.Context, q spatial.StateQuery) (models.SpatialResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = &q
	return f.result, f.err
}

func (f *fakeSpatial) NearbyTicker(_ context.Context, q spatial.NearbyQuery) (models.SpatialResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nearby = &q
	return f.result, f.err
}

func (f *fakeSpatial) Region(_ context.Context, q spatial.RegionQuery) (models.RegionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.region = &q
	return f.stats, f.err
}

type fakeMarket struct {
	err       error
	bar       models.Bar
	bars      []models.Bar
	overview  models.MarketOverview
	companies []models.Company
	series    []models.TickerSeries

	latestTicker string
	history      *market.HistoryQuery
	bulk         *market.BulkQuery
	searchQuery  string
	searchLimit  int
}

func (f *fakeMarket) Latest(_ context.Context, ticker string) (models.Bar, error) {
	f.latestTicker = ticker
	return f.bar, f.err
}

func (f *fakeMarket) History(_ context.Context, q market.HistoryQuery) ([]models.Bar, error) {
	f.history = &q
	return f.bars, f.err
}

func (f *fakeMarket) Bulk(_ context.Context, q market.BulkQuery) ([]models.TickerSeries, error) {
	f.bulk = &q
	return f.series, f.err
}

func (f *fakeMarket) Overview(context.Context) (models.MarketOverview, error) {
	return f.overview, f.err
}

func (f *fakeMarket) Search(_ context.Context, q string, limit int) ([]models.Company, error) {
	f.searchQuery = q
	f.searchLimit = limit
	return f.companies, f.err
}

type fakeCache struct {
	stats    cache.TieredStats
	cleared  int
	l1       int
	err      error
	patterns []string
	l1Clears int
}

func (f *fakeCache) Stats(context.Context) cache.TieredStats { return f.stats }

func (f *fakeCache) ClearPattern(_ context.Context, pattern string) (int, error) {
	f.patterns = append(f.patterns, pattern)
	return f.cleared, f.err
}

func (f *fakeCache) ClearL1() int {
	f.l1Clears++
	return f.l1
}

type fakeBreakers map[string]breaker.Snapshot

func (f fakeBreakers) Snapshot() map[string]breaker.Snapshot { return f }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

// envelope mirrors models.APIResponse with a raw data payload.
type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %q: %v", string(env.Data), err)
	}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func newTestHandler(sp *fakeSpatial, mk *fakeMarket, c *fakeCache) *Handler {
	if sp == nil {
		sp = &fakeSpatial{}
	}
	if mk == nil {
		mk = &fakeMarket{}
	}
	if c == nil {
		c = &fakeCache{}
	}
	return NewHandler(Deps{
		Spatial:  sp,
		Market:   mk,
		Cache:    c,
		Breakers: fakeBreakers{breaker.TimeSeries: {State: "closed"}},
		DB:       fakePinger{},
	})
}
