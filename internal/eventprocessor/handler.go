// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package eventprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/geomarket/internal/geoindex"
	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/metrics"
)

// Invalidator clears cached data. *cache.Invalidator implements it.
type Invalidator interface {
	Ticker(ctx context.Context, ticker string) (int, error)
	Spatial(ctx context.Context) (int, error)
	MarketOverview(ctx context.Context) (int, error)
}

// LocationIndex is the part of the geo index the handler writes.
type LocationIndex interface {
	Add(ctx context.Context, loc geoindex.Location) error
	Remove(ctx context.Context, ticker string) (bool, error)
}

// Handler applies market events to the cache and the geo index.
type Handler struct {
	cache Invalidator
	index LocationIndex
}

// NewHandler creates a Handler. index may be nil when the geo index is not
// maintained by this process; location events then only clear the cache.
func NewHandler(cache Invalidator, index LocationIndex) *Handler {
	return &Handler{cache: cache, index: index}
}

// Handle applies one event. Index failures are returned so the event is
// redelivered; cache clearing failures are logged only, since stale
// entries expire on their own.
func (h *Handler) Handle(ctx context.Context, ev *MarketEvent) error {
	log := logging.Ctx(ctx).With().Str("event_type", ev.Type).Str("event_id", ev.ID).Logger()

	switch ev.Type {
	case TypePriceUpdated:
		cleared := 0
		for _, ticker := range ev.Tickers {
			n, err := h.cache.Ticker(ctx, ticker)
			if err != nil {
				log.Warn().Err(err).Str("ticker", ticker).Msg("Ticker cache invalidation incomplete")
			}
			cleared += n
		}
		log.Debug().Strs("tickers", ev.Tickers).Int("cleared", cleared).Msg("Price update applied")

	case TypeLocationUpdated:
		if h.index != nil {
			if err := h.index.Add(ctx, *ev.Location); err != nil {
				return fmt.Errorf("index %s: %w", ev.Location.Ticker, err)
			}
		}
		h.clearSpatial(ctx, &log)

	case TypeLocationRemoved:
		if h.index != nil {
			if _, err := h.index.Remove(ctx, ev.Ticker); err != nil {
				return fmt.Errorf("remove %s from index: %w", ev.Ticker, err)
			}
		}
		h.clearSpatial(ctx, &log)

	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
	return nil
}

func (h *Handler) clearSpatial(ctx context.Context, log *zerolog.Logger) {
	if _, err := h.cache.Spatial(ctx); err != nil {
		log.Warn().Err(err).Msg("Spatial cache invalidation incomplete")
	}
}

// HandleMessage decodes msg and applies it. Malformed events return nil
// so they are acked and dropped.
func (h *Handler) HandleMessage(msg *message.Message) error {
	ctx := msg.Context()
	if id := msg.Metadata.Get(logging.CorrelationIDKey); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}

	ev, err := Unmarshal(msg.Payload)
	if err != nil {
		metrics.MarketEventsProcessed.WithLabelValues("unknown", "dropped").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed market event")
		return nil
	}
	ctx = logging.ContextWithEvent(ctx, ev.ID, ev.Type)

	if err := h.Handle(ctx, ev); err != nil {
		if errors.Is(err, ErrInvalidEvent) {
			metrics.MarketEventsProcessed.WithLabelValues(ev.Type, "dropped").Inc()
			return nil
		}
		metrics.MarketEventsProcessed.WithLabelValues(ev.Type, "failed").Inc()
		return err
	}
	metrics.MarketEventsProcessed.WithLabelValues(ev.Type, "ok").Inc()
	return nil
}
