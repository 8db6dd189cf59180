// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/cache"
	"github.com/tomtom215/geomarket/internal/config"
	"github.com/tomtom215/geomarket/internal/database"
	"github.com/tomtom215/geomarket/internal/eventprocessor"
	"github.com/tomtom215/geomarket/internal/geoindex"
	"github.com/tomtom215/geomarket/internal/kvstore"
	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/market"
	"github.com/tomtom215/geomarket/internal/spatial"
)

// startupTimeout bounds each blocking step of startup.
const startupTimeout = 30 * time.Second

// components holds everything main wires together. closers run in reverse
// order on shutdown.
type components struct {
	breakers *breaker.Registry
	nats     *kvstore.EmbeddedServer
	kv       *kvstore.Client
	db       *database.DB
	cache    *cache.Tiered
	index    *geoindex.Index
	spatial  *spatial.Engine
	market   *market.Service
	consumer *eventprocessor.Consumer
	warmer   *cache.Warmer

	closers []func()
}

func (c *components) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

// Close releases every component in reverse construction order.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// newBreakers registers the two named breakers from configuration.
func newBreakers(cfg *config.Config) *breaker.Registry {
	reg := breaker.NewRegistry(breaker.Settings{CallTimeout: cfg.Breakers.CallTimeout})
	reg.Register(breaker.Settings{
		Name:             breaker.TimeSeries,
		FailureThreshold: cfg.Breakers.TimeSeries.FailureThreshold,
		RecoveryTimeout:  cfg.Breakers.TimeSeries.RecoveryTimeout,
		IsSuccessful:     database.IsNoRows,
	})
	reg.Register(breaker.Settings{
		Name:             breaker.KVStore,
		FailureThreshold: cfg.Breakers.KVStore.FailureThreshold,
		RecoveryTimeout:  cfg.Breakers.KVStore.RecoveryTimeout,
		IsSuccessful:     kvstore.IsBenign,
	})
	return reg
}

// buildComponents constructs the data layer, caches and services. On error
// everything built so far is closed.
//
//nolint:gocyclo // sequential startup steps
func buildComponents(ctx context.Context, cfg *config.Config) (_ *components, err error) {
	c := &components{breakers: newBreakers(cfg)}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	natsURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		host, port, perr := hostPort(cfg.NATS.URL)
		if perr != nil {
			return nil, fmt.Errorf("embedded NATS address: %w", perr)
		}
		c.nats, err = kvstore.NewEmbeddedServer(kvstore.ServerConfig{
			Host:      host,
			Port:      port,
			StoreDir:  cfg.NATS.StoreDir,
			MaxMemory: cfg.NATS.MaxMemory,
			MaxStore:  cfg.NATS.MaxStore,
		})
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		c.onClose(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := c.nats.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("Error shutting down embedded NATS")
			}
		})
		natsURL = c.nats.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	} else {
		logging.Info().Str("url", natsURL).Msg("Using external NATS server")
	}

	c.kv, err = kvstore.Connect(kvstore.Config{
		URL:           natsURL,
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
	}, c.breakers.Get(breaker.KVStore))
	if err != nil {
		return nil, err
	}
	c.onClose(c.kv.Close)

	c.db, err = database.New(&cfg.Database, c.breakers.Get(breaker.TimeSeries))
	if err != nil {
		return nil, fmt.Errorf("open time-series store: %w", err)
	}
	c.onClose(func() {
		if err := c.db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	})
	logging.Info().
		Str("path", cfg.Database.Path).
		Bool("seeded", cfg.Database.SeedSampleData).
		Msg("Time-series store ready")

	if c.cache, err = newCache(ctx, cfg, c.kv); err != nil {
		return nil, err
	}
	c.onClose(func() {
		if err := c.cache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing cache")
		}
	})

	c.index, err = geoindex.New(ctx, c.kv, geoindex.Config{
		Bucket:     cfg.Spatial.IndexBucket,
		CellSizeKm: cfg.Spatial.IndexCellSizeKm,
		MaxCells:   cfg.Spatial.IndexMaxCells,
		Fanout:     cfg.Spatial.FanoutLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("open geo index: %w", err)
	}
	if err := syncIndexIfEmpty(ctx, c.index, c.db); err != nil {
		// Not fatal: the index fills from location events and the periodic resync.
		logging.Warn().Err(err).Msg("Initial geo index load failed")
	}

	c.spatial = spatial.New(c.index, c.db, c.cache, spatial.Config{
		PolygonBufferKm:     cfg.Spatial.PolygonBufferKm,
		OverfetchFactor:     cfg.Spatial.OverfetchFactor,
		RegionThreshold:     cfg.Spatial.RegionThreshold,
		RegionRowsPerEntity: cfg.Spatial.RegionRowsPerEntity,
		FanoutLimit:         cfg.Spatial.FanoutLimit,
		CircleTTL:           cfg.Spatial.CircleTTL,
		PolygonTTL:          cfg.Spatial.PolygonTTL,
		StateTTL:            cfg.Spatial.StateTTL,
		RegionTTL:           cfg.Spatial.RegionTTL,
	})

	c.market = market.New(c.db, c.cache, market.Config{
		CacheErrors: !cfg.Cache.SkipCacheOnError,
		NotFound:    database.ErrNotFound,
	})

	c.warmer = cache.NewWarmer(cache.WarmerConfig{
		Interval:      cfg.Cache.WarmInterval,
		RetryInterval: cfg.Cache.WarmRetryInterval,
		Rate:          cfg.Cache.WarmRate,
		RunOnStart:    true,
	}, c.market.WarmTasks(cfg.Cache.WarmTickers)...)

	if cfg.NATS.EventsEnabled {
		evCfg := eventprocessor.ConfigFromNATS(cfg.NATS)
		evCfg.URL = natsURL
		streamCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		err = eventprocessor.EnsureStream(streamCtx, c.kv, evCfg)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("market event stream: %w", err)
		}
		handler := eventprocessor.NewHandler(cache.NewInvalidator(c.cache), c.index)
		c.consumer = eventprocessor.NewConsumer(evCfg, handler)
	} else {
		logging.Info().Msg("Market events disabled (MARKET_EVENTS_ENABLED=false)")
	}

	return c, nil
}

// newCache builds L1 and the configured L2 backend.
func newCache(ctx context.Context, cfg *config.Config, kv *kvstore.Client) (*cache.Tiered, error) {
	l1 := cache.NewMemory(cache.MemoryConfig{
		MaxEntries: cfg.Cache.L1MaxEntries,
		Policy:     cache.EvictionPolicy(cfg.Cache.L1Eviction),
	})

	// A nil *NATSStore in the interface would not compare equal to nil.
	var l2 cache.Store
	switch cfg.Cache.Backend {
	case config.CacheBackendNATS:
		store, err := cache.NewNATSStore(ctx, kv, cache.NATSStoreConfig{
			Bucket: cfg.Cache.Bucket,
			MaxTTL: cfg.Cache.BucketMaxTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("open NATS cache bucket: %w", err)
		}
		l2 = store
	case config.CacheBackendBadger:
		store, err := cache.NewBadgerStore(cfg.Cache.BadgerDir, nil)
		if err != nil {
			return nil, fmt.Errorf("open badger cache: %w", err)
		}
		l2 = store
	case config.CacheBackendNone:
		logging.Warn().Msg("No L2 cache configured, serving from L1 only")
	}

	logging.Info().
		Str("backend", cfg.Cache.Backend).
		Int("l1_max_entries", cfg.Cache.L1MaxEntries).
		Str("l1_eviction", cfg.Cache.L1Eviction).
		Msg("Cache ready")

	return cache.NewTiered(l1, l2, cache.Config{
		Namespace:  cfg.Cache.Namespace,
		Version:    cfg.Cache.Version,
		L1TTLCap:   cfg.Cache.L1TTLCap,
		DefaultTTL: cfg.Cache.DefaultTTL,
	}), nil
}

// companyLocations converts located companies into index records.
func companyLocations(ctx context.Context, db *database.DB) ([]geoindex.Location, error) {
	companies, err := db.CompanyLocations(ctx)
	if err != nil {
		return nil, err
	}
	locs := make([]geoindex.Location, 0, len(companies))
	for _, co := range companies {
		if !co.HasLocation() {
			continue
		}
		locs = append(locs, geoindex.Location{
			Ticker:    co.Ticker,
			Name:      co.Name,
			Address:   co.Address,
			Latitude:  *co.Latitude,
			Longitude: *co.Longitude,
		})
	}
	return locs, nil
}

// syncIndexIfEmpty loads every located company into an empty index.
func syncIndexIfEmpty(ctx context.Context, ix *geoindex.Index, db *database.DB) error {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	n, err := ix.Count(ctx)
	if err != nil {
		return fmt.Errorf("count index: %w", err)
	}
	if n > 0 {
		logging.Info().Int("locations", n).Msg("Geo index already populated")
		return nil
	}
	return resyncIndex(ctx, ix, db)
}

// resyncIndex writes every located company to the index. Add is an upsert,
// so running it on a populated index only repairs drift.
func resyncIndex(ctx context.Context, ix *geoindex.Index, db *database.DB) error {
	locs, err := companyLocations(ctx, db)
	if err != nil {
		return fmt.Errorf("load company locations: %w", err)
	}
	added, err := ix.Sync(ctx, locs)
	if err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	logging.Info().Int("locations", added).Msg("Geo index synced from time-series store")
	return nil
}

// hostPort splits a nats:// URL into the host and port the embedded
// server should bind.
func hostPort(rawURL string) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, err
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("port %q: %w", portStr, err)
	}
	return host, port, nil
}
