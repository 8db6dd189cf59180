// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/geomarket/internal/kvstore/kvtest"
)

// storeContract runs the behavior every L2 backend must share.
func storeContract(t *testing.T, s Store, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		if _, ok, err := s.Get(ctx, "geomarket:cache:v1:none"); ok || err != nil {
			t.Errorf("Get(missing) = %v, %v", ok, err)
		}
	})

	t.Run("set get expire", func(t *testing.T) {
		key := "geomarket:cache:v1:latest:AAPL"
		if err := s.Set(ctx, key, []byte(`{"close":189.5}`), 10*time.Second); err != nil {
			t.Fatal(err)
		}
		item, ok, err := s.Get(ctx, key)
		if err != nil || !ok {
			t.Fatalf("Get = %v, %v", ok, err)
		}
		if string(item.Value) != `{"close":189.5}` {
			t.Errorf("Value = %s", item.Value)
		}
		if want := clock.Now().Add(10 * time.Second); !item.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %v, want %v", item.ExpiresAt, want)
		}

		clock.Advance(11 * time.Second)
		if _, ok, _ := s.Get(ctx, key); ok {
			t.Error("expired item returned")
		}
	})

	t.Run("delete", func(t *testing.T) {
		key := "geomarket:cache:v1:to-delete"
		_ = s.Set(ctx, key, []byte(`1`), time.Minute)
		if err := s.Delete(ctx, key); err != nil {
			t.Fatal(err)
		}
		if _, ok, _ := s.Get(ctx, key); ok {
			t.Error("deleted item returned")
		}
		if err := s.Delete(ctx, key); err != nil {
			t.Errorf("deleting a missing key: %v", err)
		}
	})

	t.Run("delete matching", func(t *testing.T) {
		keys := []string{
			"geomarket:cache:v1:spatial:circle:1",
			"geomarket:cache:v1:spatial:polygon:2",
			"geomarket:cache:v1:latest:MSFT",
		}
		for _, k := range keys {
			if err := s.Set(ctx, k, []byte(`1`), time.Minute); err != nil {
				t.Fatal(err)
			}
		}

		n, err := s.DeleteMatching(ctx, "geomarket:cache:v1:spatial:*")
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("DeleteMatching removed %d, want 2", n)
		}
		if _, ok, _ := s.Get(ctx, keys[2]); !ok {
			t.Error("non-matching key was removed")
		}
	})

	t.Run("stats", func(t *testing.T) {
		st := s.Stats(ctx)
		if !st.Connected {
			t.Errorf("Stats = %+v, want connected", st)
		}
		if st.Keys == 0 {
			t.Error("expected at least one key")
		}
	})
}

func TestNATSStore(t *testing.T) {
	client, _ := kvtest.Connect(t)
	clock := newFakeClock()

	s, err := NewNATSStore(context.Background(), client, NATSStoreConfig{
		Bucket: "test_cache",
		Memory: true,
		Clock:  clock.Now,
	})
	if err != nil {
		t.Fatal(err)
	}
	storeContract(t, s, clock)
}

func TestNATSStore_KeysAreEncoded(t *testing.T) {
	for _, key := range []string{"geomarket:cache:v1:bars:AAPL:ff", "a b*c", "ümlaut"} {
		got, ok := decodeKey(encodeKey(key))
		if !ok || got != key {
			t.Errorf("round trip %q = %q, %v", key, got, ok)
		}
	}
	if _, ok := decodeKey("not base64!"); ok {
		t.Error("expected invalid encoding to be rejected")
	}
}

func TestNATSStore_WithTiered(t *testing.T) {
	client, _ := kvtest.Connect(t)
	clock := newFakeClock()
	ctx := context.Background()

	l2, err := NewNATSStore(ctx, client, NATSStoreConfig{Bucket: "tiered_cache", Memory: true, Clock: clock.Now})
	if err != nil {
		t.Fatal(err)
	}
	c := NewTiered(NewMemory(MemoryConfig{Clock: clock.Now}), l2, Config{Clock: clock.Now})

	c.Set(ctx, "market:overview", []byte(`{"companies":7}`), 5*time.Minute)
	c.ClearL1()

	v, ok := c.Get(ctx, "market:overview")
	if !ok || string(v) != `{"companies":7}` {
		t.Fatalf("Get via L2 = %s, %v", v, ok)
	}
	if st := c.Stats(ctx); st.L1.Size != 1 || st.L2.Backend != "nats" {
		t.Errorf("Stats = %+v", st)
	}
}
