// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/geomarket/internal/logging"
)

// errSubscriptionClosed makes the supervisor restart the consumer when the
// message channel closes underneath it.
var errSubscriptionClosed = errors.New("event subscription closed")

// Consumer feeds events from the topic to a Handler. It implements
// suture.Service; every Serve call opens a fresh subscription.
type Consumer struct {
	cfg     Config
	handler *Handler
	logger  zerolog.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

// NewConsumer creates a consumer for cfg.Topic.
func NewConsumer(cfg Config, handler *Handler) *Consumer {
	return &Consumer{
		cfg:     cfg.withDefaults(),
		handler: handler,
		logger:  logging.WithComponent("event-consumer"),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the first subscription is established.
func (c *Consumer) Ready() <-chan struct{} {
	return c.ready
}

func (c *Consumer) newSubscriber() (message.Subscriber, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger(logging.SourceWatermill))

	// Binding to the pre-created stream; wildcard topics cannot name a
	// stream, so auto-provisioning stays off.
	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(c.cfg.MaxDeliver),
		natsgo.AckWait(c.cfg.AckWait),
		natsgo.DeliverNew(),
		natsgo.BindStream(c.cfg.StreamName),
	}

	return wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              c.cfg.URL,
		QueueGroupPrefix: c.cfg.QueueGroup,
		SubscribersCount: c.cfg.SubscribersCount,
		AckWaitTimeout:   c.cfg.AckWait,
		CloseTimeout:     c.cfg.CloseTimeout,
		NatsOptions:      c.cfg.natsOptions("geomarket-events-consumer", c.logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    c.cfg.DurableName,
		},
	}, logger)
}

// Serve consumes until ctx is canceled.
func (c *Consumer) Serve(ctx context.Context) error {
	sub, err := c.newSubscriber()
	if err != nil {
		return fmt.Errorf("create event subscriber: %w", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Event subscriber close failed")
		}
	}()

	messages, err := sub.Subscribe(ctx, c.cfg.Topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.cfg.Topic, err)
	}
	c.readyOnce.Do(func() { close(c.ready) })
	c.logger.Info().Str("topic", c.cfg.Topic).Str("stream", c.cfg.StreamName).Msg("Consuming market events")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errSubscriptionClosed
			}
			c.process(msg)
		}
	}
}

func (c *Consumer) process(msg *message.Message) {
	if err := c.handler.HandleMessage(msg); err != nil {
		c.logger.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Market event failed, will be redelivered")
		msg.Nack()
		return
	}
	msg.Ack()
}

// String implements fmt.Stringer for suture logging.
func (c *Consumer) String() string {
	return "market-event-consumer"
}
