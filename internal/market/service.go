// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

// Package market serves cached price data: latest bars, bar history, bulk
// history with locations, the market overview and company search.
//
// Every read goes through a cache.Loader whose key layout matches the
// patterns cleared by cache.Invalidator, so a price.updated event for a
// ticker drops exactly that ticker's entries and the overview.
package market

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/geomarket/internal/cache"
	"github.com/tomtom215/geomarket/internal/models"
	"github.com/tomtom215/geomarket/internal/validation"
)

// Request limits.
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
	DefaultSearchLimit  = 20
	MaxSearchLimit      = 100
	MaxBulkTickers      = 50
)

// Store is the time-series data the service reads.
type Store interface {
	LatestBar(ctx context.Context, ticker string) (models.Bar, error)
	Bars(ctx context.Context, ticker string, start, end time.Time, limit int) ([]models.Bar, error)
	MarketOverview(ctx context.Context) (models.MarketOverview, error)
	SearchCompanies(ctx context.Context, q string, limit int) ([]models.Company, error)
	Company(ctx context.Context, ticker string) (models.Company, error)
}

// Config sets cache lifetimes. Zero values take the defaults noted.
type Config struct {
	LatestTTL   time.Duration // 1m
	HistoryTTL  time.Duration // 5m
	OverviewTTL time.Duration // 5m
	SearchTTL   time.Duration // 10m
	CompanyTTL  time.Duration // 1h

	// BulkFanout caps concurrent per-ticker loads in Bulk.
	BulkFanout int // 8

	// CacheErrors records backend failures briefly so a failing store is
	// not hit by every request.
	CacheErrors bool

	// NotFound is the sentinel the store wraps for an unknown ticker. Cached
	// failures keep matching it, and Bulk omits the location of a company
	// that matches it instead of failing.
	NotFound error
}

func (c Config) withDefaults() Config {
	if c.LatestTTL <= 0 {
		c.LatestTTL = time.Minute
	}
	if c.HistoryTTL <= 0 {
		c.HistoryTTL = 5 * time.Minute
	}
	if c.OverviewTTL <= 0 {
		c.OverviewTTL = 5 * time.Minute
	}
	if c.SearchTTL <= 0 {
		c.SearchTTL = 10 * time.Minute
	}
	if c.CompanyTTL <= 0 {
		c.CompanyTTL = time.Hour
	}
	if c.BulkFanout <= 0 {
		c.BulkFanout = 8
	}
	return c
}

func (c Config) errorKinds() []error {
	if c.NotFound == nil {
		return nil
	}
	return []error{c.NotFound}
}

// HistoryQuery selects bars for one ticker. Zero Start or End leaves that
// side open.
type HistoryQuery struct {
	Ticker string
	Start  time.Time
	End    time.Time
	Limit  int
}

// BulkQuery selects bars for several tickers at once. Zero Start or End
// leaves that side open; Limit applies per ticker.
type BulkQuery struct {
	Tickers         []string
	Start           time.Time
	End             time.Time
	Limit           int
	IncludeLocation bool
}

type searchQuery struct {
	Text  string `json:"q"`
	Limit int    `json:"limit"`
}

// Service reads market data through the tiered cache.
type Service struct {
	store    Store
	fanout   int
	notFound error

	latest   *cache.Loader[string, models.Bar]
	history  *cache.Loader[HistoryQuery, []models.Bar]
	overview *cache.Loader[struct{}, models.MarketOverview]
	search   *cache.Loader[searchQuery, []models.Company]
	company  *cache.Loader[string, models.Company]
}

// New builds a Service over store, caching in c.
func New(store Store, c *cache.Tiered, cfg Config) *Service {
	cfg = cfg.withDefaults()
	s := &Service{store: store, fanout: cfg.BulkFanout, notFound: cfg.NotFound}
	kinds := cfg.errorKinds()

	// Keys: latest:<T>, bars:<T>:<start>:<end>:<limit>, market:overview,
	// company:<T>.
	s.latest = cache.NewLoader(c, "latest", cache.LoaderOptions[string, models.Bar]{
		TTL:         cfg.LatestTTL,
		KeyFunc:     func(ticker string) string { return ticker },
		CacheErrors: cfg.CacheErrors,
		ErrorKinds:  kinds,
	}, store.LatestBar)

	s.history = cache.NewLoader(c, "bars", cache.LoaderOptions[HistoryQuery, []models.Bar]{
		TTL:         cfg.HistoryTTL,
		KeyFunc:     historyKey,
		CacheErrors: cfg.CacheErrors,
		ErrorKinds:  kinds,
	}, func(ctx context.Context, q HistoryQuery) ([]models.Bar, error) {
		bars, err := store.Bars(ctx, q.Ticker, q.Start, q.End, q.Limit)
		if bars == nil && err == nil {
			bars = []models.Bar{}
		}
		return bars, err
	})

	s.overview = cache.NewLoader(c, "market", cache.LoaderOptions[struct{}, models.MarketOverview]{
		TTL:         cfg.OverviewTTL,
		KeyFunc:     func(struct{}) string { return "overview" },
		CacheErrors: cfg.CacheErrors,
		ErrorKinds:  kinds,
	}, func(ctx context.Context, _ struct{}) (models.MarketOverview, error) {
		return store.MarketOverview(ctx)
	})

	s.search = cache.NewLoader(c, "search", cache.LoaderOptions[searchQuery, []models.Company]{
		TTL: cfg.SearchTTL,
	}, func(ctx context.Context, q searchQuery) ([]models.Company, error) {
		companies, err := store.SearchCompanies(ctx, q.Text, q.Limit)
		if companies == nil && err == nil {
			companies = []models.Company{}
		}
		return companies, err
	})

	s.company = cache.NewLoader(c, "company", cache.LoaderOptions[string, models.Company]{
		TTL:         cfg.CompanyTTL,
		KeyFunc:     func(ticker string) string { return ticker },
		CacheErrors: cfg.CacheErrors,
		ErrorKinds:  kinds,
	}, store.Company)

	return s
}

func historyKey(q HistoryQuery) string {
	return strings.Join([]string{q.Ticker, timeKey(q.Start), timeKey(q.End), strconv.Itoa(q.Limit)}, ":")
}

func timeKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return strconv.FormatInt(t.Unix(), 10)
}

// Latest returns the most recent bar for ticker.
func (s *Service) Latest(ctx context.Context, ticker string) (models.Bar, error) {
	ticker, err := validation.NormalizeTicker(ticker)
	if err != nil {
		return models.Bar{}, err
	}
	return s.latest.Get(ctx, ticker)
}

// History returns bars for q.Ticker, most recent first.
func (s *Service) History(ctx context.Context, q HistoryQuery) ([]models.Bar, error) {
	ticker, err := validation.NormalizeTicker(q.Ticker)
	if err != nil {
		return nil, err
	}
	q.Ticker = ticker
	if q.Limit == 0 {
		q.Limit = DefaultHistoryLimit
	}
	if q.Limit < 1 || q.Limit > MaxHistoryLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", validation.ErrInvalidRange, MaxHistoryLimit)
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.Start.After(q.End) {
		return nil, fmt.Errorf("%w: start must not be after end", validation.ErrInvalidRange)
	}
	return s.history.Get(ctx, q)
}

// Bulk returns bars for each distinct ticker in q, in request order. Each
// ticker is a separate cached history lookup; at most BulkFanout run at
// once. Any failed lookup fails the whole request.
func (s *Service) Bulk(ctx context.Context, q BulkQuery) ([]models.TickerSeries, error) {
	tickers, err := distinctTickers(q.Tickers)
	if err != nil {
		return nil, err
	}
	if q.Limit == 0 {
		q.Limit = DefaultHistoryLimit
	}
	if q.Limit < 1 || q.Limit > MaxHistoryLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", validation.ErrInvalidRange, MaxHistoryLimit)
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.Start.After(q.End) {
		return nil, fmt.Errorf("%w: start must not be after end", validation.ErrInvalidRange)
	}

	out := make([]models.TickerSeries, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for i, ticker := range tickers {
		g.Go(func() error {
			bars, err := s.history.Get(gctx, HistoryQuery{Ticker: ticker, Start: q.Start, End: q.End, Limit: q.Limit})
			if err != nil {
				return fmt.Errorf("bars for %s: %w", ticker, err)
			}
			out[i] = models.TickerSeries{Ticker: ticker, Bars: bars}
			if !q.IncludeLocation {
				return nil
			}
			loc, err := s.location(gctx, ticker)
			if err != nil {
				return fmt.Errorf("location for %s: %w", ticker, err)
			}
			out[i].Location = loc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) location(ctx context.Context, ticker string) (*models.SeriesLocation, error) {
	c, err := s.company.Get(ctx, ticker)
	if err != nil {
		if s.notFound != nil && errors.Is(err, s.notFound) {
			return nil, nil
		}
		return nil, err
	}
	return &models.SeriesLocation{Name: c.Name, Latitude: c.Latitude, Longitude: c.Longitude}, nil
}

// distinctTickers normalizes tickers and drops repeats, keeping the first
// occurrence.
func distinctTickers(in []string) ([]string, error) {
	if len(in) == 0 || len(in) > MaxBulkTickers {
		return nil, fmt.Errorf("%w: between 1 and %d tickers required", validation.ErrInvalidRange, MaxBulkTickers)
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		t, err := validation.NormalizeTicker(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// Overview returns market-wide counts and the top volume of the latest day.
func (s *Service) Overview(ctx context.Context) (models.MarketOverview, error) {
	return s.overview.Get(ctx, struct{}{})
}

// Search finds companies by ticker or name.
func (s *Service) Search(ctx context.Context, q string, limit int) ([]models.Company, error) {
	text, err := validation.CheckSearchText(q)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit < 1 || limit > MaxSearchLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", validation.ErrInvalidRange, MaxSearchLimit)
	}
	return s.search.Get(ctx, searchQuery{Text: strings.ToLower(text), Limit: limit})
}

// WarmTasks returns tasks that refresh the overview and the latest bar of
// each ticker. Invalid tickers are skipped.
func (s *Service) WarmTasks(tickers []string) []cache.WarmTask {
	tasks := []cache.WarmTask{{
		Name: "market-overview",
		Run: func(ctx context.Context) error {
			_, err := s.overview.Refresh(ctx, struct{}{})
			return err
		},
	}}
	for _, t := range tickers {
		ticker, err := validation.NormalizeTicker(t)
		if err != nil {
			continue
		}
		tasks = append(tasks, cache.WarmTask{
			Name: "latest:" + ticker,
			Run: func(ctx context.Context) error {
				_, err := s.latest.Refresh(ctx, ticker)
				return err
			},
		})
	}
	return tasks
}
