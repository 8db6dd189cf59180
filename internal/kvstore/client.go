// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

// Package kvstore is the gateway to the networked key-value store: a NATS
// connection with JetStream, bucket provisioning and an embedded server for
// single-node deployments. Buckets back the L2 cache and the geospatial
// index; a stream carries market events.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/logging"
)

// Config holds client connection settings.
type Config struct {
	URL            string
	Name           string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// BucketConfig describes a KV bucket.
type BucketConfig struct {
	Name        string
	Description string
	TTL         time.Duration // bucket-wide maximum age
	History     uint8
	MaxBytes    int64
	Memory      bool
}

// Client is a NATS connection with a JetStream context. Calls made through
// Do are guarded by the kvstore circuit breaker.
type Client struct {
	nc      *natsgo.Conn
	js      jetstream.JetStream
	breaker *breaker.Breaker
}

// Connect dials NATS. b guards every KV operation issued through the client.
func Connect(cfg Config, b *breaker.Breaker) (*Client, error) {
	if cfg.Name == "" {
		cfg.Name = "geomarket"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	opts := []natsgo.Option{
		natsgo.Name(cfg.Name),
		natsgo.Timeout(cfg.ConnectTimeout),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := natsgo.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if b == nil {
		b = breaker.New(breaker.Settings{Name: breaker.KVStore, IsSuccessful: IsBenign})
	}

	return &Client{nc: nc, js: js, breaker: b}, nil
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() jetstream.JetStream { return c.js }

// Conn returns the underlying NATS connection.
func (c *Client) Conn() *natsgo.Conn { return c.nc }

// Breaker returns the breaker guarding this client.
func (c *Client) Breaker() *breaker.Breaker { return c.breaker }

// Do runs work through the kvstore breaker.
func (c *Client) Do(ctx context.Context, work func(ctx context.Context) error) error {
	return c.breaker.Do(ctx, work)
}

// Connected reports whether the connection is currently up.
func (c *Client) Connected() bool {
	return c.nc != nil && c.nc.IsConnected()
}

// Ping round-trips to the server.
func (c *Client) Ping(ctx context.Context) error {
	return c.Do(ctx, func(ctx context.Context) error {
		return c.nc.FlushWithContext(ctx)
	})
}

// KeyValue creates the bucket if needed (updating its configuration if it
// exists) and returns a handle to it.
func (c *Client) KeyValue(ctx context.Context, cfg BucketConfig) (jetstream.KeyValue, error) {
	storage := jetstream.FileStorage
	if cfg.Memory {
		storage = jetstream.MemoryStorage
	}
	history := cfg.History
	if history == 0 {
		history = 1
	}

	kv, err := c.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Name,
		Description: cfg.Description,
		TTL:         cfg.TTL,
		History:     history,
		MaxBytes:    cfg.MaxBytes,
		Storage:     storage,
	})
	if err != nil {
		return nil, fmt.Errorf("create or update KV bucket %s: %w", cfg.Name, err)
	}
	return kv, nil
}

// EnsureStream creates the stream if it does not exist and updates it otherwise.
func (c *Client) EnsureStream(ctx context.Context, name string, subjects []string, maxAge time.Duration) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    maxAge,
		Storage:   jetstream.FileStorage,
		Discard:   jetstream.DiscardOld,
	}

	_, err := c.js.Stream(ctx, name)
	if err == nil {
		stream, err := c.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", name, err)
		}
		return stream, nil
	}
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := c.js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", name, err)
		}
		return stream, nil
	}
	return nil, fmt.Errorf("check stream %s: %w", name, err)
}

// Close drains and closes the connection.
func (c *Client) Close() {
	if c.nc == nil {
		return
	}
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
	}
}

// IsBenign reports KV errors that describe a healthy store answering "no":
// a missing key, an empty bucket or a lost compare-and-set race.
func IsBenign(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) ||
		errors.Is(err, jetstream.ErrNoKeysFound) ||
		errors.Is(err, jetstream.ErrKeyExists) ||
		errors.Is(err, jetstream.ErrKeyDeleted)
}
