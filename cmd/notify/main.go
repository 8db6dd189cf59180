// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

// Command notify publishes a market event so running Geomarket instances
// drop stale cache entries and update the geo index. Ingest jobs call it
// after writing to the time-series store.
//
// Usage:
//
//	notify [-url nats://host:4222] [-timeout 10s] price TICKER...
//	notify location TICKER LAT LON [NAME]
//	notify remove TICKER
//
// The NATS URL and topic come from the same NATS_* environment variables
// and config file as the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tomtom215/geomarket/internal/config"
	"github.com/tomtom215/geomarket/internal/eventprocessor"
	"github.com/tomtom215/geomarket/internal/geoindex"
	"github.com/tomtom215/geomarket/internal/logging"
)

var errUsage = errors.New("usage: notify [flags] price TICKER... | location TICKER LAT LON [NAME] | remove TICKER")

func main() {
	url := flag.String("url", "", "NATS URL (default from config)")
	timeout := flag.Duration("timeout", 10*time.Second, "publish timeout")
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console", Service: "geomarket-notify"})

	ev, err := parseEvent(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(ev, *url, *timeout); err != nil {
		logging.Error().Err(err).Str("event_type", ev.Type).Msg("Publish failed")
		os.Exit(1)
	}
}

func run(ev *eventprocessor.MarketEvent, url string, timeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	evCfg := eventprocessor.ConfigFromNATS(cfg.NATS)
	if url != "" {
		evCfg.URL = url
	}

	pub, err := eventprocessor.NewPublisher(evCfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	ctx, cancel := context.WithTimeout(logging.ContextWithNewCorrelationID(context.Background()), timeout)
	defer cancel()
	if err := pub.Publish(ctx, ev); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("event_id", ev.ID).Str("event_type", ev.Type).Msg("Event published")
	return nil
}

// parseEvent builds an event from the positional arguments and validates it.
func parseEvent(args []string) (*eventprocessor.MarketEvent, error) {
	if len(args) < 2 {
		return nil, errUsage
	}

	var ev *eventprocessor.MarketEvent
	switch verb, rest := args[0], args[1:]; verb {
	case "price":
		ev = eventprocessor.NewPriceUpdated(rest...)
	case "location":
		if len(rest) < 3 || len(rest) > 4 {
			return nil, errUsage
		}
		lat, err := strconv.ParseFloat(rest[1], 64)
		if err != nil {
			return nil, fmt.Errorf("latitude %q: %w", rest[1], err)
		}
		lng, err := strconv.ParseFloat(rest[2], 64)
		if err != nil {
			return nil, fmt.Errorf("longitude %q: %w", rest[2], err)
		}
		loc := geoindex.Location{Ticker: rest[0], Latitude: lat, Longitude: lng}
		if len(rest) == 4 {
			loc.Name = rest[3]
		}
		ev = eventprocessor.NewLocationUpdated(loc)
	case "remove":
		if len(rest) != 1 {
			return nil, errUsage
		}
		ev = eventprocessor.NewLocationRemoved(rest[0])
	default:
		return nil, fmt.Errorf("unknown event %q: %w", verb, errUsage)
	}

	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}
