// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package kvstore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/geomarket/internal/kvstore"
	"github.com/tomtom215/geomarket/internal/kvstore/kvtest"
)

func TestEmbeddedServer(t *testing.T) {
	srv := kvtest.StartServer(t)
	if err := srv.Ready(); err != nil {
		t.Errorf("Ready() = %v", err)
	}
	if srv.ClientURL() == "" {
		t.Error("empty client URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	if srv.Ready() == nil {
		t.Error("Ready() after Shutdown should fail")
	}
}

func TestClient_KeyValue(t *testing.T) {
	client, _ := kvtest.Connect(t)
	ctx := context.Background()

	if !client.Connected() {
		t.Fatal("client not connected")
	}
	if err := client.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	kv, err := client.KeyValue(ctx, kvstore.BucketConfig{Name: "test_bucket", TTL: time.Hour, Memory: true})
	if err != nil {
		t.Fatalf("KeyValue() error = %v", err)
	}
	if _, err := kv.Put(ctx, "a.b", []byte("1")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Re-provisioning an existing bucket is idempotent.
	again, err := client.KeyValue(ctx, kvstore.BucketConfig{Name: "test_bucket", TTL: time.Hour, Memory: true})
	if err != nil {
		t.Fatalf("second KeyValue() error = %v", err)
	}
	entry, err := again.Get(ctx, "a.b")
	if err != nil || string(entry.Value()) != "1" {
		t.Errorf("Get() = %v, %v", entry, err)
	}
}

func TestClient_EnsureStream(t *testing.T) {
	client, _ := kvtest.Connect(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		stream, err := client.EnsureStream(ctx, "TEST_EVENTS", []string{"test.events", "test.events.>"}, time.Hour)
		if err != nil {
			t.Fatalf("EnsureStream() #%d error = %v", i, err)
		}
		info, err := stream.Info(ctx)
		if err != nil {
			t.Fatalf("Info() error = %v", err)
		}
		if info.Config.Name != "TEST_EVENTS" {
			t.Errorf("stream name = %q", info.Config.Name)
		}
	}
}

func TestIsBenign(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{jetstream.ErrKeyNotFound, true},
		{fmt.Errorf("get: %w", jetstream.ErrKeyNotFound), true},
		{jetstream.ErrNoKeysFound, true},
		{jetstream.ErrKeyExists, true},
		{errors.New("nats: connection closed"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := kvstore.IsBenign(tt.err); got != tt.want {
			t.Errorf("IsBenign(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
