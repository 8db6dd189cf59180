// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/geomarket/internal/api"
	"github.com/tomtom215/geomarket/internal/config"
	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/metrics"
	"github.com/tomtom215/geomarket/internal/supervisor"
	"github.com/tomtom215/geomarket/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	checkpointInterval  = 10 * time.Minute
	indexResyncInterval = time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   "geomarket",
		Version:   version,
	})
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Geomarket exited with error")
	}
	logging.Info().Msg("Geomarket stopped")
}

// run builds the components, serves until SIGINT or SIGTERM, and returns
// once every supervised service has stopped. Deferred closes run before
// main logs the outcome.
func run(cfg *config.Config) error {
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("cache_backend", cfg.Cache.Backend).
		Bool("embedded_nats", cfg.NATS.EmbeddedServer).
		Bool("events_enabled", cfg.NATS.EventsEnabled).
		Bool("operator_auth", !cfg.Security.DevelopmentMode()).
		Msg("Starting Geomarket")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize components: %w", err)
	}
	defer c.Close()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logging.SourceSupervisor), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	tree.AddDataService(c.warmer)
	tree.AddDataService(services.NewPeriodicService("duckdb-checkpoint", checkpointInterval, false, c.db.Checkpoint))
	tree.AddDataService(services.NewPeriodicService("geoindex-resync", indexResyncInterval, false, func(ctx context.Context) error {
		return resyncIndex(ctx, c.index, c.db)
	}))
	if c.consumer != nil {
		tree.AddMessagingService(c.consumer)
	}

	handler := api.NewHandler(api.Deps{
		Spatial:  c.spatial,
		Market:   c.market,
		Cache:    c.cache,
		Breakers: c.breakers,
		DB:       c.db,
		KV:       c.kv,
	})
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, api.RouterConfigFrom(cfg)),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       time.Minute,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().
		Str("addr", server.Addr).
		Int("warm_tickers", len(cfg.Cache.WarmTickers)).
		Bool("event_consumer", c.consumer != nil).
		Msg("Supervisor tree assembled")

	// Serve returns after ctx is cancelled and the tree has stopped, or
	// earlier if the root supervisor itself fails.
	serveErr := tree.Serve(ctx)
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	}
	if ctx.Err() != nil {
		logging.Info().Msg("Shutdown signal received")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		names := make([]string, 0, len(unstopped))
		for _, svc := range unstopped {
			names = append(names, svc.Name)
		}
		logging.Warn().Strs("services", names).Msg("Services did not stop within the shutdown timeout")
	}

	// Flush the WAL before the deferred close.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.db.Checkpoint(flushCtx); err != nil {
		logging.Warn().Err(err).Msg("Final checkpoint failed")
	}
	return serveErr
}
