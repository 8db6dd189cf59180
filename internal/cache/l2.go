// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package cache

import (
	"context"
	"path"
	"time"
)

const tierL2 = "l2"

// Item is a value read from L2 together with its absolute expiry.
type Item struct {
	Value     []byte
	ExpiresAt time.Time
}

// StoreStats describes an L2 backend for the stats endpoint.
type StoreStats struct {
	Backend   string `json:"backend"`
	Connected bool   `json:"connected"`
	Keys      uint64 `json:"keys"`
	Bytes     uint64 `json:"bytes"`
	Error     string `json:"error,omitempty"`
}

// Store is a networked or persistent second-tier cache. Keys passed in are
// fully namespaced. Every write carries a TTL.
type Store interface {
	// Get returns the item, or found=false when the key is absent or expired.
	Get(ctx context.Context, key string) (item Item, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteMatching removes every key matching a glob pattern and returns
	// how many were removed.
	DeleteMatching(ctx context.Context, pattern string) (int, error)
	Stats(ctx context.Context) StoreStats
	Close() error
}

// matchKey reports whether key matches a glob pattern (*, ? and [...]).
// Malformed patterns match nothing.
func matchKey(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
