// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/geomarket/internal/metrics"
)

// Layer names a child supervisor of the root.
type Layer string

const (
	// LayerData runs cache warming, DuckDB checkpoints and geo index resync.
	LayerData Layer = "data-layer"
	// LayerMessaging runs the market event consumer.
	LayerMessaging Layer = "messaging-layer"
	// LayerAPI runs the HTTP server.
	LayerAPI Layer = "api-layer"
)

const rootName = "geomarket"

// layers is the start order under the root.
var layers = [...]Layer{LayerData, LayerMessaging, LayerAPI}

// TreeConfig tunes restart behaviour. Zero fields take DefaultTreeConfig
// values.
type TreeConfig struct {
	// FailureThreshold failures within the decay window put a supervisor
	// into backoff for FailureBackoff.
	FailureThreshold float64
	FailureDecay     float64 // seconds
	FailureBackoff   time.Duration

	// ShutdownTimeout bounds how long each service gets to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig matches suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay <= 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff <= 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

func (c TreeConfig) spec(hook suture.EventHook) suture.Spec {
	return suture.Spec{
		EventHook:        hook,
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// SupervisorTree is the root supervisor with one child per Layer. Layers
// restart independently: a crashing event consumer leaves the API serving
// cached and direct results.
type SupervisorTree struct {
	root   *suture.Supervisor
	layers map[Layer]*suture.Supervisor
	config TreeConfig
}

// NewSupervisorTree builds the tree. Supervisor events are logged through
// logger and counted in metrics.SupervisorEvents.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	if logger == nil {
		return nil, fmt.Errorf("supervisor: nil logger")
	}
	config = config.withDefaults()

	logHook := (&sutureslog.Handler{Logger: logger}).MustHook()
	hook := func(ev suture.Event) {
		recordEvent(ev)
		logHook(ev)
	}

	t := &SupervisorTree{
		root:   suture.New(rootName, config.spec(hook)),
		layers: make(map[Layer]*suture.Supervisor, len(layers)),
		config: config,
	}
	// Children added to the root inherit its EventHook.
	for _, l := range layers {
		sup := suture.New(string(l), config.spec(nil))
		t.root.Add(sup)
		t.layers[l] = sup
	}
	return t, nil
}

// recordEvent counts ev by the supervisor that emitted it.
func recordEvent(ev suture.Event) {
	var sup, kind string
	switch e := ev.(type) {
	case suture.EventServiceTerminate:
		sup, kind = e.SupervisorName, "terminate"
	case suture.EventServicePanic:
		sup, kind = e.SupervisorName, "panic"
	case suture.EventBackoff:
		sup, kind = e.SupervisorName, "backoff"
	case suture.EventResume:
		sup, kind = e.SupervisorName, "resume"
	case suture.EventStopTimeout:
		sup, kind = e.SupervisorName, "stop_timeout"
	default:
		return
	}
	metrics.SupervisorEvents.WithLabelValues(sup, kind).Inc()
}

func (t *SupervisorTree) Root() *suture.Supervisor { return t.root }

// Add starts svc under layer. It panics on an unknown layer.
func (t *SupervisorTree) Add(layer Layer, svc suture.Service) suture.ServiceToken {
	sup, ok := t.layers[layer]
	if !ok {
		panic(fmt.Sprintf("supervisor: unknown layer %q", layer))
	}
	return sup.Add(svc)
}

// Remove stops the service identified by token in layer.
func (t *SupervisorTree) Remove(layer Layer, token suture.ServiceToken) error {
	sup, ok := t.layers[layer]
	if !ok {
		return fmt.Errorf("supervisor: unknown layer %q", layer)
	}
	return sup.Remove(token)
}

func (t *SupervisorTree) AddDataService(svc suture.Service) suture.ServiceToken {
	return t.Add(LayerData, svc)
}

func (t *SupervisorTree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.Add(LayerMessaging, svc)
}

func (t *SupervisorTree) RemoveMessagingService(token suture.ServiceToken) error {
	return t.Remove(LayerMessaging, token)
}

func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.Add(LayerAPI, svc)
}

// Serve blocks until ctx is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine; the channel yields its
// result once it stops.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
