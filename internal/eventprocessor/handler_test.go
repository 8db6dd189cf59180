// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package eventprocessor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/geomarket/internal/geoindex"
	"github.com/tomtom215/geomarket/internal/metrics"
)

type recorder struct {
	mu    sync.Mutex
	calls []string

	spatialErr error
	indexErr   error
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) Ticker(_ context.Context, ticker string) (int, error) {
	r.add("cache.ticker:" + ticker)
	return 2, nil
}

func (r *recorder) Spatial(context.Context) (int, error) {
	r.add("cache.spatial")
	return 0, r.spatialErr
}

func (r *recorder) MarketOverview(context.Context) (int, error) {
	r.add("cache.overview")
	return 1, nil
}

func (r *recorder) Add(_ context.Context, loc geoindex.Location) error {
	r.add("index.add:" + loc.Ticker)
	return r.indexErr
}

func (r *recorder) Remove(_ context.Context, ticker string) (bool, error) {
	r.add("index.remove:" + ticker)
	return true, r.indexErr
}

func TestHandler_Handle(t *testing.T) {
	tests := []struct {
		name string
		ev   *MarketEvent
		want []string
	}{
		{
			name: "price update",
			ev:   NewPriceUpdated("AAPL", "MSFT"),
			want: []string{"cache.ticker:AAPL", "cache.ticker:MSFT"},
		},
		{
			name: "location update",
			ev:   NewLocationUpdated(geoindex.Location{Ticker: "NVDA", Latitude: 37.37, Longitude: -121.96}),
			want: []string{"index.add:NVDA", "cache.spatial"},
		},
		{
			name: "location removal",
			ev:   NewLocationRemoved("IBM"),
			want: []string{"index.remove:IBM", "cache.spatial"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			if err := NewHandler(r, r).Handle(context.Background(), tt.ev); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, r.snapshot()); diff != "" {
				t.Errorf("calls (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandler_WithoutIndex(t *testing.T) {
	r := &recorder{}
	if err := NewHandler(r, nil).Handle(context.Background(), NewLocationRemoved("IBM")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if diff := cmp.Diff([]string{"cache.spatial"}, r.snapshot()); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
}

func TestHandler_Failures(t *testing.T) {
	t.Run("index failure is returned", func(t *testing.T) {
		r := &recorder{indexErr: errors.New("kv unavailable")}
		err := NewHandler(r, r).Handle(context.Background(), NewLocationUpdated(geoindex.Location{Ticker: "A", Latitude: 1, Longitude: 1}))
		if err == nil {
			t.Fatal("expected error")
		}
		// The cache is left alone until the index write succeeds.
		if diff := cmp.Diff([]string{"index.add:A"}, r.snapshot()); diff != "" {
			t.Errorf("calls (-want +got):\n%s", diff)
		}
	})

	t.Run("cache failure is logged", func(t *testing.T) {
		r := &recorder{spatialErr: errors.New("l2 unavailable")}
		if err := NewHandler(r, r).Handle(context.Background(), NewLocationRemoved("IBM")); err != nil {
			t.Errorf("Handle() error = %v", err)
		}
	})
}

func TestHandler_HandleMessage(t *testing.T) {
	r := &recorder{}
	h := NewHandler(r, r)

	dropped := testutil.ToFloat64(metrics.MarketEventsProcessed.WithLabelValues("unknown", "dropped"))
	if err := h.HandleMessage(message.NewMessage("1", []byte(`not json`))); err != nil {
		t.Errorf("malformed message error = %v, want nil", err)
	}
	if got := testutil.ToFloat64(metrics.MarketEventsProcessed.WithLabelValues("unknown", "dropped")); got != dropped+1 {
		t.Errorf("dropped counter = %v, want %v", got, dropped+1)
	}

	data, err := Marshal(NewPriceUpdated("KO"))
	if err != nil {
		t.Fatal(err)
	}
	if err := h.HandleMessage(message.NewMessage("2", data)); err != nil {
		t.Errorf("HandleMessage() error = %v", err)
	}

	r.indexErr = errors.New("kv unavailable")
	data, err = Marshal(NewLocationRemoved("KO"))
	if err != nil {
		t.Fatal(err)
	}
	if err := h.HandleMessage(message.NewMessage("3", data)); err == nil {
		t.Error("index failure must be returned for redelivery")
	}

	if diff := cmp.Diff([]string{"cache.ticker:KO", "index.remove:KO"}, r.snapshot()); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
}
