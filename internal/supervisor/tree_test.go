// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/geomarket/internal/metrics"
)

// mockService runs until canceled, optionally failing its first few runs.
type mockService struct {
	name       string
	startCount atomic.Int32
	stopCount  atomic.Int32
	failFirst  int32
}

func (m *mockService) Serve(ctx context.Context) error {
	n := m.startCount.Add(1)
	if n <= m.failFirst {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	m.stopCount.Add(1)
	return ctx.Err()
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (m *mockService) String() string { return m.name }

var _ suture.Service = (*mockService)(nil)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSupervisorTree_Defaults(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree: %v", err)
	}
	if tree.Root() == nil {
		t.Fatal("root supervisor is nil")
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults %+v", tree.config, DefaultTreeConfig())
	}
}

func TestNewSupervisorTree_KeepsExplicitValues(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{FailureBackoff: time.Second, ShutdownTimeout: 3 * time.Second})
	if tree.config.FailureBackoff != time.Second || tree.config.ShutdownTimeout != 3*time.Second {
		t.Errorf("config = %+v", tree.config)
	}
	if tree.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %v, want default 5", tree.config.FailureThreshold)
	}
}

func TestSupervisorTree_StartsEveryLayer(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})

	warmer := &mockService{name: "cache-warmer"}
	consumer := &mockService{name: "market-event-consumer"}
	httpSvc := &mockService{name: "http-server"}
	tree.AddDataService(warmer)
	tree.AddMessagingService(consumer)
	tree.AddAPIService(httpSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, "every layer to start", func() bool {
		return warmer.startCount.Load() > 0 && consumer.startCount.Load() > 0 && httpSvc.startCount.Load() > 0
	})

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down in time")
	}
}

func TestSupervisorTree_RestartsFailingService(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failing := &mockService{name: "market-event-consumer", failFirst: 2}
	stable := &mockService{name: "http-server"}
	tree.AddMessagingService(failing)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	errCh := tree.ServeBackground(ctx)
	<-errCh

	if got := failing.startCount.Load(); got < 3 {
		t.Errorf("failing service started %d times, want at least 3", got)
	}
	if got := stable.startCount.Load(); got != 1 {
		t.Errorf("stable service started %d times, want 1", got)
	}
}

func TestSupervisorTree_RemoveMessagingService(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	consumer := &mockService{name: "market-event-consumer"}
	token := tree.AddMessagingService(consumer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	// Removal needs a running supervisor.
	waitFor(t, "consumer to start", func() bool { return consumer.startCount.Load() > 0 })
	if err := tree.RemoveMessagingService(token); err != nil {
		t.Fatalf("RemoveMessagingService: %v", err)
	}
	waitFor(t, "consumer to stop", func() bool { return consumer.stopCount.Load() > 0 })

	cancel()
	<-errCh
	if got := consumer.startCount.Load(); got != 1 {
		t.Errorf("removed consumer started %d times, want 1", got)
	}
}

func TestNewSupervisorTree_NilLogger(t *testing.T) {
	if _, err := NewSupervisorTree(nil, TreeConfig{}); err == nil {
		t.Error("expected an error for a nil logger")
	}
}

func TestSupervisorTree_UnknownLayer(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{})

	if err := tree.Remove(Layer("cold-storage"), suture.ServiceToken{}); err == nil {
		t.Error("Remove on an unknown layer should fail")
	}

	defer func() {
		if recover() == nil {
			t.Error("Add on an unknown layer should panic")
		}
	}()
	tree.Add(Layer("cold-storage"), &mockService{name: "x"})
}

func TestRecordEvent(t *testing.T) {
	tests := []struct {
		ev   suture.Event
		kind string
	}{
		{suture.EventServiceTerminate{SupervisorName: "messaging-layer"}, "terminate"},
		{suture.EventServicePanic{SupervisorName: "messaging-layer"}, "panic"},
		{suture.EventBackoff{SupervisorName: "messaging-layer"}, "backoff"},
		{suture.EventResume{SupervisorName: "messaging-layer"}, "resume"},
		{suture.EventStopTimeout{SupervisorName: "messaging-layer"}, "stop_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			c := metrics.SupervisorEvents.WithLabelValues("messaging-layer", tt.kind)
			before := testutil.ToFloat64(c)
			recordEvent(tt.ev)
			if got := testutil.ToFloat64(c) - before; got != 1 {
				t.Errorf("counter moved by %v, want 1", got)
			}
		})
	}
}
