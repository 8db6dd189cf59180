// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package eventprocessor

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/geomarket/internal/geo"
	"github.com/tomtom215/geomarket/internal/geoindex"
	"github.com/tomtom215/geomarket/internal/validation"
)

// Event types.
const (
	TypePriceUpdated    = "price.updated"
	TypeLocationUpdated = "location.updated"
	TypeLocationRemoved = "location.removed"
)

// ErrInvalidEvent marks events that can never be processed. They are
// dropped rather than redelivered.
var ErrInvalidEvent = errors.New("invalid market event")

// MarketEvent is the wire format of every event on the topic. Only the
// fields of the given Type are set.
type MarketEvent struct {
	ID         string    `json:"id,omitempty"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	// price.updated
	Tickers []string `json:"tickers,omitempty"`

	// location.updated
	Location *geoindex.Location `json:"location,omitempty"`

	// location.removed
	Ticker string `json:"ticker,omitempty"`
}

func newEvent(typ string) *MarketEvent {
	return &MarketEvent{ID: uuid.NewString(), Type: typ, OccurredAt: time.Now().UTC()}
}

// NewPriceUpdated returns an event announcing new bars for tickers.
func NewPriceUpdated(tickers ...string) *MarketEvent {
	ev := newEvent(TypePriceUpdated)
	ev.Tickers = tickers
	return ev
}

// NewLocationUpdated returns an event announcing a new or moved
// headquarters.
func NewLocationUpdated(loc geoindex.Location) *MarketEvent {
	ev := newEvent(TypeLocationUpdated)
	ev.Location = &loc
	return ev
}

// NewLocationRemoved returns an event announcing that ticker no longer has
// a location.
func NewLocationRemoved(ticker string) *MarketEvent {
	ev := newEvent(TypeLocationRemoved)
	ev.Ticker = ticker
	return ev
}

// Validate checks the event and normalizes its tickers in place.
func (e *MarketEvent) Validate() error {
	switch e.Type {
	case TypePriceUpdated:
		if len(e.Tickers) == 0 {
			return fmt.Errorf("%w: %s without tickers", ErrInvalidEvent, e.Type)
		}
		for i, t := range e.Tickers {
			ticker, err := validation.NormalizeTicker(t)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
			}
			e.Tickers[i] = ticker
		}
	case TypeLocationUpdated:
		if e.Location == nil {
			return fmt.Errorf("%w: %s without location", ErrInvalidEvent, e.Type)
		}
		ticker, err := validation.NormalizeTicker(e.Location.Ticker)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
		e.Location.Ticker = ticker
		if _, err := geo.ValidatePoint(e.Location.Latitude, e.Location.Longitude); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
	case TypeLocationRemoved:
		ticker, err := validation.NormalizeTicker(e.Ticker)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
		e.Ticker = ticker
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}

// Marshal validates and encodes the event.
func Marshal(e *MarketEvent) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates an event.
func Unmarshal(data []byte) (*MarketEvent, error) {
	var e MarketEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
