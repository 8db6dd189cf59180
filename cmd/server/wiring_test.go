// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package main

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/config"
)

func TestHostPort(t *testing.T) {
	tests := []struct {
		url      string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"nats://127.0.0.1:4222", "127.0.0.1", 4222, false},
		{"nats://0.0.0.0:14222", "0.0.0.0", 14222, false},
		{"nats://localhost", "", 0, true},
		{"nats://127.0.0.1:port", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			host, port, err := hostPort(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("hostPort = %s:%d, want %s:%d", host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestNewBreakers(t *testing.T) {
	cfg := &config.Config{}
	cfg.Breakers.TimeSeries.FailureThreshold = 20
	cfg.Breakers.KVStore.FailureThreshold = 10

	reg := newBreakers(cfg)

	names := reg.Names()
	sort.Strings(names)
	if diff := cmp.Diff([]string{breaker.KVStore, breaker.TimeSeries}, names); diff != "" {
		t.Errorf("registered breakers mismatch (-want +got):\n%s", diff)
	}
	for name, snap := range reg.Snapshot() {
		if snap.State != "closed" {
			t.Errorf("%s starts %s, want closed", name, snap.State)
		}
	}
}
