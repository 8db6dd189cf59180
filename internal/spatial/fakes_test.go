// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package spatial

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/geomarket/internal/cache"
	"github.com/tomtom215/geomarket/internal/database"
	"github.com/tomtom215/geomarket/internal/geo"
	"github.com/tomtom215/geomarket/internal/geoindex"
	"github.com/tomtom215/geomarket/internal/models"
)

type radiusCall struct {
	center   geo.Point
	radiusKm float64
	limit    int
}

// fakeIndex is an in-memory Index with exact haversine search.
type fakeIndex struct {
	mu     sync.Mutex
	locs   map[string]geoindex.Location
	err    error
	getErr error
	calls  []radiusCall
}

func newFakeIndex(locs ...geoindex.Location) *fakeIndex {
	f := &fakeIndex{locs: map[string]geoindex.Location{}}
	for _, l := range locs {
		f.locs[l.Ticker] = l
	}
	return f
}

func (f *fakeIndex) Radius(_ context.Context, center geo.Point, radiusKm float64, limit int) ([]geoindex.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, radiusCall{center, radiusKm, limit})
	if f.err != nil {
		return nil, f.err
	}

	var hits []geoindex.Hit
	for _, l := range f.locs {
		if d := geo.Haversine(center, l.Point()); d <= radiusKm {
			hits = append(hits, geoindex.Hit{Location: l, DistanceKm: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceKm != hits[j].DistanceKm {
			return hits[i].DistanceKm < hits[j].DistanceKm
		}
		return hits[i].Ticker < hits[j].Ticker
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeIndex) Get(_ context.Context, ticker string) (geoindex.Location, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return geoindex.Location{}, false, f.getErr
	}
	l, ok := f.locs[ticker]
	return l, ok, nil
}

func (f *fakeIndex) radiusCalls() []radiusCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]radiusCall(nil), f.calls...)
}

// fakeStore is an in-memory Store. bars are kept most recent first.
type fakeStore struct {
	mu        sync.Mutex
	companies map[string]models.Company
	bars      map[string][]models.Bar

	barsErr   error
	latestErr map[string]error
	stateErr  error

	barsCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		companies: map[string]models.Company{},
		bars:      map[string][]models.Bar{},
		latestErr: map[string]error{},
	}
}

func (s *fakeStore) addCompany(ticker, state string, lat, lng float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[ticker] = models.Company{Ticker: ticker, Name: ticker + " Corp", State: state, Latitude: &lat, Longitude: &lng}
}

// addCloses stores one daily bar per close, the last one dated day.
func (s *fakeStore) addCloses(ticker string, day time.Time, volume int64, closes ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(closes) - 1; i >= 0; i-- {
		s.bars[ticker] = append(s.bars[ticker], models.Bar{
			Ticker:    ticker,
			Timestamp: day.AddDate(0, 0, i-len(closes)+1),
			Close:     closes[i],
			Volume:    volume,
		})
	}
}

func (s *fakeStore) Company(_ context.Context, ticker string) (models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[ticker]
	if !ok {
		return models.Company{}, fmt.Errorf("company %s: %w", ticker, database.ErrNotFound)
	}
	return c, nil
}

func (s *fakeStore) CompaniesInState(_ context.Context, state string, limit int) ([]models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateErr != nil {
		return nil, s.stateErr
	}
	var out []models.Company
	for _, c := range s.companies {
		if c.State == state && c.HasLocation() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) TickersInState(_ context.Context, state string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateErr != nil {
		return nil, s.stateErr
	}
	var out []string
	for _, c := range s.companies {
		if c.State == state {
			out = append(out, c.Ticker)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeStore) LatestBar(_ context.Context, ticker string) (models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.latestErr[ticker]; err != nil {
		return models.Bar{}, err
	}
	bars := s.bars[ticker]
	if len(bars) == 0 {
		return models.Bar{}, fmt.Errorf("latest bar %s: %w", ticker, database.ErrNotFound)
	}
	return bars[0], nil
}

func (s *fakeStore) Bars(_ context.Context, ticker string, start, end time.Time, limit int) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.barsCalls++
	if s.barsErr != nil {
		return nil, s.barsErr
	}
	var out []models.Bar
	for _, b := range s.bars[ticker] {
		if !start.IsZero() && b.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func newTestCache() *cache.Tiered {
	return cache.NewTiered(cache.NewMemory(cache.MemoryConfig{MaxEntries: 100}), nil, cache.Config{Namespace: "test"})
}

func newTestEngine(index Index, store Store, cfg Config) *Engine {
	return New(index, store, newTestCache(), cfg)
}

func loc(ticker string, lat, lng float64) geoindex.Location {
	return geoindex.Location{Ticker: ticker, Name: ticker + " Corp", Latitude: lat, Longitude: lng}
}

func tickersOf(companies []models.SpatialCompany) []string {
	out := make([]string, len(companies))
	for i, c := range companies {
		out[i] = c.Ticker
	}
	return out
}

func mustNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
