// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

// Package eventprocessor consumes market events from NATS JetStream and
// keeps the cache and the geospatial index consistent with them.
//
// Events travel as JSON on a single topic (nats.events_topic, default
// "market.events") through Watermill's NATS transport:
//
//	{"type":"price.updated","tickers":["AAPL","MSFT"]}
//	{"type":"location.updated","location":{"ticker":"AAPL","latitude":37.33,"longitude":-122.01}}
//	{"type":"location.removed","ticker":"AAPL"}
//
// A price update clears the cached price data of each ticker and the
// market overview. Location events upsert or delete the point in the geo
// index and then clear every cached spatial result.
//
// # Delivery
//
// The MARKET_EVENTS stream is created up front by EnsureStream; publisher
// and subscriber bind to it rather than auto-provisioning. The subscriber
// uses a durable queue-group consumer, so several instances share the
// stream and each event is handled once. A handler error nacks the
// message for redelivery; malformed events are acked and dropped.
package eventprocessor
