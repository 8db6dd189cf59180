// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package spatial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/models"
)

// Bay Area companies used across the engine tests.
func bayArea() *fakeIndex {
	return newFakeIndex(
		loc("AAPL", 37.3349, -122.0090),
		loc("NVDA", 37.3708, -121.9644),
		loc("GOOGL", 37.4220, -122.0841),
		loc("MSFT", 47.6396, -122.1283),
	)
}

func TestCircle(t *testing.T) {
	e := newTestEngine(bayArea(), newFakeStore(), Config{})

	res, err := e.Circle(context.Background(), CircleQuery{Latitude: 37.3349, Longitude: -122.0090, RadiusKm: 50})
	mustNoError(t, err)

	if diff := cmp.Diff([]string{"AAPL", "NVDA", "GOOGL"}, tickersOf(res.Companies)); diff != "" {
		t.Errorf("companies (-want +got):\n%s", diff)
	}
	if res.Query != "circle" || res.Count != 3 || res.RadiusKm != 50 || res.Center == nil {
		t.Errorf("result = %+v", res)
	}
	if *res.Companies[0].DistanceKm != 0 {
		t.Errorf("distance of center company = %v", *res.Companies[0].DistanceKm)
	}
}

func TestCircle_IsCached(t *testing.T) {
	index := bayArea()
	e := newTestEngine(index, newFakeStore(), Config{})
	ctx := context.Background()
	q := CircleQuery{Latitude: 37.3349, Longitude: -122.0090, RadiusKm: 50, Limit: 10}

	first, err := e.Circle(ctx, q)
	mustNoError(t, err)
	second, err := e.Circle(ctx, q)
	mustNoError(t, err)

	if n := len(index.radiusCalls()); n != 1 {
		t.Errorf("index called %d times, want 1", n)
	}
	if diff := cmp.Diff(tickersOf(first.Companies), tickersOf(second.Companies)); diff != "" {
		t.Errorf("cached result differs:\n%s", diff)
	}

	// The default limit and an explicit 100 are the same query.
	_, _ = e.Circle(ctx, CircleQuery{Latitude: 1, Longitude: 1, RadiusKm: 5})
	_, _ = e.Circle(ctx, CircleQuery{Latitude: 1, Longitude: 1, RadiusKm: 5, Limit: 100})
	if n := len(index.radiusCalls()); n != 2 {
		t.Errorf("index called %d times, want 2", n)
	}
}

func TestCircle_Validation(t *testing.T) {
	index := bayArea()
	e := newTestEngine(index, newFakeStore(), Config{})

	tests := []struct {
		name string
		q    CircleQuery
	}{
		{"latitude", CircleQuery{Latitude: 90.5, RadiusKm: 10}},
		{"longitude", CircleQuery{Longitude: -181, RadiusKm: 10}},
		{"zero radius", CircleQuery{RadiusKm: 0}},
		{"negative radius", CircleQuery{RadiusKm: -1}},
		{"radius too large", CircleQuery{RadiusKm: 1000.5}},
		{"limit", CircleQuery{RadiusKm: 10, Limit: -3}},
		{"limit too large", CircleQuery{RadiusKm: 10, Limit: 1001}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Circle(context.Background(), tt.q); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
	if n := len(index.radiusCalls()); n != 0 {
		t.Errorf("index called %d times for invalid requests", n)
	}
}

func TestCircle_IndexErrorPropagates(t *testing.T) {
	index := bayArea()
	index.err = &breaker.OpenError{Name: breaker.KVStore, RetryAfter: time.Second}
	e := newTestEngine(index, newFakeStore(), Config{})

	_, err := e.Circle(context.Background(), CircleQuery{Latitude: 37, Longitude: -122, RadiusKm: 10})
	if !errors.Is(err, breaker.ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestEnrichment(t *testing.T) {
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.addCloses("AAPL", day, 1000, 190, 191.5)
	store.addCloses("GOOGL", day, 500, 140)
	// NVDA has no bars.

	t.Run("attaches latest bar", func(t *testing.T) {
		e := newTestEngine(bayArea(), store, Config{FanoutLimit: 2})
		res, err := e.Circle(context.Background(), CircleQuery{Latitude: 37.3349, Longitude: -122.0090, RadiusKm: 50, IncludeMarketData: true})
		mustNoError(t, err)
		if res.Degraded {
			t.Fatal("a ticker without bars must not degrade the result")
		}

		byTicker := map[string]float64{}
		for _, c := range res.Companies {
			if c.MarketData != nil {
				byTicker[c.Ticker] = c.MarketData.Close
			}
		}
		if diff := cmp.Diff(map[string]float64{"AAPL": 191.5, "GOOGL": 140}, byTicker); diff != "" {
			t.Errorf("market data (-want +got):\n%s", diff)
		}
	})

	t.Run("failure degrades", func(t *testing.T) {
		failing := newFakeStore()
		failing.addCloses("AAPL", day, 1000, 190)
		failing.latestErr["GOOGL"] = errors.New("connection refused")

		e := newTestEngine(bayArea(), failing, Config{})
		res, err := e.Circle(context.Background(), CircleQuery{Latitude: 37.3349, Longitude: -122.0090, RadiusKm: 50, IncludeMarketData: true})
		mustNoError(t, err)
		if !res.Degraded {
			t.Error("enrichment failure must mark the result degraded")
		}
		if res.Count != 3 {
			t.Errorf("companies dropped on enrichment failure: %d", res.Count)
		}
		for _, c := range res.Companies {
			if c.MarketData != nil {
				t.Errorf("%s enriched despite failure", c.Ticker)
			}
		}
	})
}

func TestState(t *testing.T) {
	store := newFakeStore()
	store.addCompany("GS", "NY", 40.7146, -74.0144)
	store.addCompany("JPM", "NY", 40.7557, -73.9755)
	store.addCompany("IBM", "NY", 41.1077, -73.7207)
	store.addCompany("AAPL", "CA", 37.3349, -122.0090)
	e := newTestEngine(newFakeIndex(), store, Config{})
	ctx := context.Background()

	res, err := e.State(ctx, StateQuery{State: " ny ", Limit: 2})
	mustNoError(t, err)
	if diff := cmp.Diff([]string{"GS", "IBM"}, tickersOf(res.Companies)); diff != "" {
		t.Errorf("companies (-want +got):\n%s", diff)
	}
	if res.State != "NY" || res.Companies[0].DistanceKm != nil {
		t.Errorf("result = %+v", res)
	}

	for _, bad := range []string{"NYC", "1A", ""} {
		if _, err := e.State(ctx, StateQuery{State: bad}); !errors.Is(err, ErrValidation) {
			t.Errorf("State(%q) err = %v", bad, err)
		}
	}

	store.stateErr = errors.New("connection refused")
	if _, err := e.State(ctx, StateQuery{State: "TX"}); err == nil {
		t.Error("store failure must propagate")
	}
}

func TestNearbyTicker(t *testing.T) {
	ctx := context.Background()

	t.Run("excludes the target", func(t *testing.T) {
		e := newTestEngine(bayArea(), newFakeStore(), Config{})
		res, err := e.NearbyTicker(ctx, NearbyQuery{Ticker: "aapl", RadiusKm: 50, Limit: 2})
		mustNoError(t, err)
		if diff := cmp.Diff([]string{"NVDA", "GOOGL"}, tickersOf(res.Companies)); diff != "" {
			t.Errorf("companies (-want +got):\n%s", diff)
		}
		if res.Ticker != "AAPL" {
			t.Errorf("ticker = %q", res.Ticker)
		}
	})

	t.Run("falls back to the store", func(t *testing.T) {
		index := bayArea()
		store := newFakeStore()
		store.addCompany("INTC", "CA", 37.3875, -121.9636)
		e := newTestEngine(index, store, Config{})

		res, err := e.NearbyTicker(ctx, NearbyQuery{Ticker: "INTC", RadiusKm: 10})
		mustNoError(t, err)
		if diff := cmp.Diff([]string{"NVDA", "AAPL"}, tickersOf(res.Companies)); diff != "" {
			t.Errorf("companies (-want +got):\n%s", diff)
		}
	})

	t.Run("index lookup failure falls back to the store", func(t *testing.T) {
		index := bayArea()
		index.getErr = errors.New("kv unavailable")
		store := newFakeStore()
		store.addCompany("AAPL", "CA", 37.3349, -122.0090)
		e := newTestEngine(index, store, Config{})

		res, err := e.NearbyTicker(ctx, NearbyQuery{Ticker: "AAPL"})
		mustNoError(t, err)
		if res.RadiusKm != DefaultNearbyRadiusKm || res.Count != 2 {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("unknown ticker", func(t *testing.T) {
		e := newTestEngine(bayArea(), newFakeStore(), Config{})
		if _, err := e.NearbyTicker(ctx, NearbyQuery{Ticker: "ZZZZ"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("ticker without coordinates", func(t *testing.T) {
		store := newFakeStore()
		store.companies["PRIV"] = models.Company{Ticker: "PRIV", Name: "Private Holdings", State: "DE"}
		e := newTestEngine(newFakeIndex(), store, Config{})
		if _, err := e.NearbyTicker(ctx, NearbyQuery{Ticker: "PRIV"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("store failure propagates", func(t *testing.T) {
		index := newFakeIndex()
		index.getErr = errors.New("kv unavailable")
		e := newTestEngine(index, failingCompanyStore{newFakeStore()}, Config{})
		_, err := e.NearbyTicker(ctx, NearbyQuery{Ticker: "AAPL"})
		if err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want a backend error", err)
		}
	})

	t.Run("radius failure degrades", func(t *testing.T) {
		index := bayArea()
		index.err = errors.New("kv unavailable")
		e := newTestEngine(index, newFakeStore(), Config{})
		res, err := e.NearbyTicker(ctx, NearbyQuery{Ticker: "AAPL"})
		mustNoError(t, err)
		if !res.Degraded || res.Count != 0 || res.Center == nil {
			t.Errorf("result = %+v", res)
		}

		// Degraded results are recomputed on the next call.
		_, _ = e.NearbyTicker(ctx, NearbyQuery{Ticker: "AAPL"})
		if n := len(index.radiusCalls()); n != 2 {
			t.Errorf("index searched %d times, want 2", n)
		}
	})

	t.Run("validation", func(t *testing.T) {
		e := newTestEngine(bayArea(), newFakeStore(), Config{})
		for _, q := range []NearbyQuery{
			{Ticker: "AAPL; DROP"},
			{Ticker: "AAPL", RadiusKm: 501},
			{Ticker: "AAPL", Limit: 101},
		} {
			if _, err := e.NearbyTicker(ctx, q); !errors.Is(err, ErrValidation) {
				t.Errorf("NearbyTicker(%+v) err = %v", q, err)
			}
		}
	})
}

type failingCompanyStore struct{ *fakeStore }

func (failingCompanyStore) Company(context.Context, string) (models.Company, error) {
	return models.Company{}, errors.New("connection refused")
}
