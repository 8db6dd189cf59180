// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/geomarket/internal/config"
	"github.com/tomtom215/geomarket/internal/kvstore"
)

// DefaultStreamName is the JetStream stream carrying market events.
const DefaultStreamName = "MARKET_EVENTS"

// Config configures the publisher and the consumer.
type Config struct {
	URL   string
	Topic string // market.events

	StreamName   string        // MARKET_EVENTS
	StreamMaxAge time.Duration // 24h

	QueueGroup  string // geomarket
	DurableName string // geomarket-cache

	MaxReconnects int           // -1 (forever)
	ReconnectWait time.Duration // 2s

	AckWait          time.Duration // 30s
	MaxDeliver       int           // 5
	SubscribersCount int           // 1
	CloseTimeout     time.Duration // 10s
}

// ConfigFromNATS maps the service's NATS settings. Unset fields keep their
// defaults.
func ConfigFromNATS(n config.NATSConfig) Config {
	return Config{
		URL:           n.URL,
		Topic:         n.EventsTopic,
		QueueGroup:    n.QueueGroup,
		DurableName:   n.DurableName,
		MaxReconnects: n.MaxReconnects,
		ReconnectWait: n.ReconnectWait,
	}
}

func (c Config) withDefaults() Config {
	if c.Topic == "" {
		c.Topic = "market.events"
	}
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}
	if c.StreamMaxAge <= 0 {
		c.StreamMaxAge = 24 * time.Hour
	}
	if c.QueueGroup == "" {
		c.QueueGroup = "geomarket"
	}
	if c.DurableName == "" {
		c.DurableName = "geomarket-cache"
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.AckWait <= 0 {
		c.AckWait = 30 * time.Second
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = 5
	}
	if c.SubscribersCount <= 0 {
		c.SubscribersCount = 1
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 10 * time.Second
	}
	return c
}

// EnsureStream creates or updates the stream that holds the event topic.
func EnsureStream(ctx context.Context, client *kvstore.Client, cfg Config) error {
	cfg = cfg.withDefaults()
	subjects := []string{cfg.Topic, cfg.Topic + ".>"}
	if _, err := client.EnsureStream(ctx, cfg.StreamName, subjects, cfg.StreamMaxAge); err != nil {
		return fmt.Errorf("ensure event stream: %w", err)
	}
	return nil
}

// natsOptions are the connection options shared by the publisher and the
// consumer. Connection loss is logged on log and retried forever unless
// MaxReconnects says otherwise.
//
//nolint:gocritic // zerolog.Logger is passed by value throughout zerolog
func (c Config) natsOptions(clientName string, log zerolog.Logger) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name(clientName),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(c.MaxReconnects),
		natsgo.ReconnectWait(c.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS connection lost")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS connection restored")
		}),
	}
}
