// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

// Package geoindex is the geospatial index of company locations, stored in
// its own JetStream KV bucket.
//
// Each ticker has a location record under "loc.<TICKER>". Locations are also
// grouped into grid cells ("cell.<x>.<y>") so a radius search reads only the
// cells that can hold a match. Cell records are updated with
// compare-and-set so concurrent writers on one cell never lose a member.
package geoindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/geomarket/internal/geo"
	"github.com/tomtom215/geomarket/internal/kvstore"
	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/metrics"
	"github.com/tomtom215/geomarket/internal/validation"
)

// Defaults for Config.
const (
	DefaultBucket   = "geomarket_geo"
	DefaultMaxCells = 2048
	DefaultFanout   = 8

	maxCASAttempts = 32
	locPrefix      = "loc."
)

// ErrConflict is returned when a cell could not be updated after repeated
// compare-and-set races.
var ErrConflict = errors.New("geo index: too many concurrent updates")

// Location is one indexed company.
type Location struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point returns the location's coordinates.
func (l Location) Point() geo.Point {
	return geo.Point{Lat: l.Latitude, Lng: l.Longitude}
}

// Hit is a radius search result.
type Hit struct {
	Location
	DistanceKm float64 `json:"distance_km"`
}

// Config configures an Index.
type Config struct {
	Bucket     string
	CellSizeKm float64

	// MaxCells caps how many cells one search reads before it falls back
	// to scanning every location.
	MaxCells int

	// Fanout bounds concurrent KV reads per search.
	Fanout int

	// Memory keeps the bucket in memory instead of on disk.
	Memory bool
}

// Index is the KV-backed geospatial index.
type Index struct {
	client   *kvstore.Client
	kv       jetstream.KeyValue
	grid     Grid
	maxCells int
	fanout   int
}

// New provisions the index bucket.
func New(ctx context.Context, client *kvstore.Client, cfg Config) (*Index, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.MaxCells <= 0 {
		cfg.MaxCells = DefaultMaxCells
	}
	if cfg.Fanout <= 0 {
		cfg.Fanout = DefaultFanout
	}

	kv, err := client.KeyValue(ctx, kvstore.BucketConfig{
		Name:        cfg.Bucket,
		Description: "geomarket company locations",
		Memory:      cfg.Memory,
	})
	if err != nil {
		return nil, err
	}

	return &Index{
		client:   client,
		kv:       kv,
		grid:     NewGrid(cfg.CellSizeKm),
		maxCells: cfg.MaxCells,
		fanout:   cfg.Fanout,
	}, nil
}

// Add inserts or moves a location.
func (ix *Index) Add(ctx context.Context, loc Location) error {
	ticker, err := validation.NormalizeTicker(loc.Ticker)
	if err != nil {
		return err
	}
	loc.Ticker = ticker
	if _, err := geo.ValidatePoint(loc.Latitude, loc.Longitude); err != nil {
		return err
	}

	prev, found, err := ix.Get(ctx, ticker)
	if err != nil {
		return err
	}

	cell := ix.grid.CellOf(loc.Point())
	if err := ix.mutateCell(ctx, cell, func(members map[string]Location) bool {
		members[ticker] = loc
		return true
	}); err != nil {
		return err
	}

	if found {
		if old := ix.grid.CellOf(prev.Point()); old != cell {
			if err := ix.removeFromCell(ctx, old, ticker); err != nil {
				return err
			}
		}
	}

	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}
	return ix.client.Do(ctx, func(ctx context.Context) error {
		_, err := ix.kv.Put(ctx, locPrefix+ticker, data)
		return err
	})
}

// Remove deletes ticker from the index. It reports whether it was present.
func (ix *Index) Remove(ctx context.Context, ticker string) (bool, error) {
	ticker, err := validation.NormalizeTicker(ticker)
	if err != nil {
		return false, err
	}

	loc, found, err := ix.Get(ctx, ticker)
	if err != nil || !found {
		return false, err
	}

	if err := ix.removeFromCell(ctx, ix.grid.CellOf(loc.Point()), ticker); err != nil {
		return false, err
	}
	err = ix.client.Do(ctx, func(ctx context.Context) error {
		return ix.kv.Purge(ctx, locPrefix+ticker)
	})
	return err == nil, err
}

// Get returns the indexed location of ticker.
func (ix *Index) Get(ctx context.Context, ticker string) (Location, bool, error) {
	ticker, err := validation.NormalizeTicker(ticker)
	if err != nil {
		return Location{}, false, err
	}

	var entry jetstream.KeyValueEntry
	err = ix.client.Do(ctx, func(ctx context.Context) error {
		var err error
		entry, err = ix.kv.Get(ctx, locPrefix+ticker)
		return err
	})
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return Location{}, false, nil
	}
	if err != nil {
		return Location{}, false, fmt.Errorf("get location %s: %w", ticker, err)
	}

	var loc Location
	if err := json.Unmarshal(entry.Value(), &loc); err != nil {
		return Location{}, false, fmt.Errorf("decode location %s: %w", ticker, err)
	}
	return loc, true, nil
}

// Radius returns up to limit locations within radiusKm of center, nearest
// first.
func (ix *Index) Radius(ctx context.Context, center geo.Point, radiusKm float64, limit int) ([]Hit, error) {
	if !center.Valid() {
		return nil, fmt.Errorf("%w: center (%v, %v)", geo.ErrInvalidPoint, center.Lat, center.Lng)
	}
	if radiusKm <= 0 || limit <= 0 {
		return nil, nil
	}

	var (
		mu   sync.Mutex
		hits []Hit
	)
	collect := func(locs []Location) {
		mu.Lock()
		defer mu.Unlock()
		for _, loc := range locs {
			d := geo.Haversine(center, loc.Point())
			if d <= radiusKm {
				hits = append(hits, Hit{Location: loc, DistanceKm: d})
			}
		}
	}

	cells, ok := ix.grid.Covering(center, radiusKm, ix.maxCells)
	var err error
	if ok {
		metrics.GeoIndexCellsScanned.Observe(float64(len(cells)))
		err = ix.scanCells(ctx, cells, collect)
	} else {
		logging.Ctx(ctx).Debug().Float64("radius_km", radiusKm).Msg("Radius covers too many cells, scanning all locations")
		err = ix.scanLocations(ctx, collect)
	}
	if err != nil {
		return nil, err
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

// Count returns the number of indexed locations.
func (ix *Index) Count(ctx context.Context) (int, error) {
	keys, err := ix.locationKeys(ctx)
	return len(keys), err
}

// Sync adds every location and returns how many were indexed. Invalid
// locations are skipped and logged.
func (ix *Index) Sync(ctx context.Context, locs []Location) (int, error) {
	added := 0
	for _, loc := range locs {
		if err := ix.Add(ctx, loc); err != nil {
			if errors.Is(err, validation.ErrInvalidTicker) || errors.Is(err, geo.ErrInvalidPoint) {
				logging.Ctx(ctx).Warn().Err(err).Str("ticker", loc.Ticker).Msg("Skipping invalid location")
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}

func (ix *Index) scanCells(ctx context.Context, cells []Cell, collect func([]Location)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.fanout)

	for _, c := range cells {
		g.Go(func() error {
			members, _, err := ix.readCell(gctx, c.Key())
			if err != nil {
				return err
			}
			locs := make([]Location, 0, len(members))
			for _, loc := range members {
				locs = append(locs, loc)
			}
			collect(locs)
			return nil
		})
	}
	return g.Wait()
}

func (ix *Index) scanLocations(ctx context.Context, collect func([]Location)) error {
	keys, err := ix.locationKeys(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.fanout)
	for _, k := range keys {
		g.Go(func() error {
			loc, found, err := ix.Get(gctx, strings.TrimPrefix(k, locPrefix))
			if err != nil || !found {
				return err
			}
			collect([]Location{loc})
			return nil
		})
	}
	return g.Wait()
}

func (ix *Index) locationKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := ix.client.Do(ctx, func(ctx context.Context) error {
		lister, err := ix.kv.ListKeysFiltered(ctx, locPrefix+"*")
		if err != nil {
			return err
		}
		defer func() { _ = lister.Stop() }()
		for k := range lister.Keys() {
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil && !errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return keys, nil
}

// readCell returns a cell's members and revision; revision 0 means the cell
// record does not exist.
func (ix *Index) readCell(ctx context.Context, key string) (map[string]Location, uint64, error) {
	var entry jetstream.KeyValueEntry
	err := ix.client.Do(ctx, func(ctx context.Context) error {
		var err error
		entry, err = ix.kv.Get(ctx, key)
		return err
	})
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return map[string]Location{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", key, err)
	}

	members := map[string]Location{}
	if err := json.Unmarshal(entry.Value(), &members); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return members, entry.Revision(), nil
}

// mutateCell applies fn to the cell's members and writes them back with
// compare-and-set, retrying on conflict. fn returns false to skip the write.
func (ix *Index) mutateCell(ctx context.Context, cell Cell, fn func(map[string]Location) bool) error {
	key := cell.Key()
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		members, rev, err := ix.readCell(ctx, key)
		if err != nil {
			return err
		}
		if !fn(members) {
			return nil
		}

		data, err := json.Marshal(members)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}

		err = ix.client.Do(ctx, func(ctx context.Context) error {
			var err error
			if rev == 0 {
				_, err = ix.kv.Create(ctx, key, data)
			} else {
				_, err = ix.kv.Update(ctx, key, data, rev)
			}
			return err
		})
		if errors.Is(err, jetstream.ErrKeyExists) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("%s: %w", key, ErrConflict)
}

func (ix *Index) removeFromCell(ctx context.Context, cell Cell, ticker string) error {
	return ix.mutateCell(ctx, cell, func(members map[string]Location) bool {
		if _, ok := members[ticker]; !ok {
			return false
		}
		delete(members, ticker)
		return true
	})
}
