// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

// Package kvtest starts throwaway NATS JetStream servers for tests.
package kvtest

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/kvstore"
)

// StartServer runs an embedded JetStream server on a random port with its
// store in a temp dir. It is shut down when the test ends.
func StartServer(t testing.TB) *kvstore.EmbeddedServer {
	t.Helper()

	srv, err := kvstore.NewEmbeddedServer(kvstore.ServerConfig{
		Host:     "127.0.0.1",
		Port:     -1,
		StoreDir: t.TempDir(),
		Quiet:    true,
	})
	if err != nil {
		t.Fatalf("start embedded NATS: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

// Connect starts a server and returns a client connected to it. The client
// gets its own breaker so tests do not share breaker state.
func Connect(t testing.TB) (*kvstore.Client, *kvstore.EmbeddedServer) {
	t.Helper()

	srv := StartServer(t)
	b := breaker.New(breaker.Settings{
		Name:             "kvstore-" + t.Name(),
		FailureThreshold: 100,
		RecoveryTimeout:  time.Second,
		CallTimeout:      5 * time.Second,
		IsSuccessful:     kvstore.IsBenign,
	})
	client, err := kvstore.Connect(kvstore.Config{URL: srv.ClientURL()}, b)
	if err != nil {
		t.Fatalf("connect to embedded NATS: %v", err)
	}
	t.Cleanup(client.Close)
	return client, srv
}
