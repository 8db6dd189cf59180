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
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/logging"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// metaEventType is the message header carrying MarketEvent.Type.
const metaEventType = "event_type"

// Publisher is the producer side of the topic, used by ingest jobs through
// cmd/notify.
type Publisher struct {
	pub     message.Publisher
	topic   string
	breaker *breaker.Breaker // optional

	mu     sync.RWMutex
	closed bool
}

// NewPublisher connects to JetStream. The stream must already exist; the
// server creates it with EnsureStream. b may be nil.
func NewPublisher(cfg Config, b *breaker.Breaker) (*Publisher, error) {
	cfg = cfg.withDefaults()

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: cfg.natsOptions("geomarket-events-publisher", logging.WithComponent("event-publisher")),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			TrackMsgId: true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, watermill.NewSlogLogger(logging.NewSlogLogger(logging.SourceWatermill)))
	if err != nil {
		return nil, fmt.Errorf("create event publisher: %w", err)
	}
	return &Publisher{pub: pub, topic: cfg.Topic, breaker: b}, nil
}

// Publish validates and sends ev. The event ID is also the JetStream
// message ID, so the server drops a retried duplicate.
func (p *Publisher) Publish(ctx context.Context, ev *MarketEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	msg, err := newMessage(ctx, ev)
	if err != nil {
		return err
	}

	send := func(context.Context) error { return p.pub.Publish(p.topic, msg) }
	if p.breaker == nil {
		err = send(ctx)
	} else {
		err = p.breaker.Do(ctx, send)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// newMessage encodes ev with its dedup ID, type and the caller's
// correlation ID as metadata.
func newMessage(ctx context.Context, ev *MarketEvent) (*message.Message, error) {
	data, err := Marshal(ev)
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(ev.ID, data)
	msg.Metadata.Set(natsgo.MsgIdHdr, ev.ID)
	msg.Metadata.Set(metaEventType, ev.Type)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(logging.CorrelationIDKey, id)
	}
	return msg, nil
}

// Close is idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.pub.Close()
}
