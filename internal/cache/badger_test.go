// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package cache

import (
	"context"
	"testing"
	"time"
)

func TestBadgerStore_InMemory(t *testing.T) {
	clock := newFakeClock()
	s, err := NewBadgerStore("", clock.Now)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	storeContract(t, s, clock)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewBadgerStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "k", []byte(`"v"`), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = NewBadgerStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	item, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(item.Value) != `"v"` {
		t.Errorf("Get after reopen = %s, %v, %v", item.Value, ok, err)
	}
}
