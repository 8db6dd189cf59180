// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package cache

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/geomarket/internal/kvstore"
	"github.com/tomtom215/geomarket/internal/logging"
)

// NATSStore is an L2 backed by a JetStream KV bucket.
//
// KV keys only allow [-/_=.a-zA-Z0-9], so logical keys are stored
// base64url-encoded. JetStream has no per-key TTL on Put, so each value is
// wrapped in an envelope carrying its expiry; the bucket's own max age is
// an upper bound that eventually removes everything.
type NATSStore struct {
	client *kvstore.Client
	kv     jetstream.KeyValue
	now    func() time.Time
}

type envelope struct {
	ExpiresAt int64           `json:"exp"`
	Value     json.RawMessage `json:"v"`
}

// NATSStoreConfig configures NewNATSStore.
type NATSStoreConfig struct {
	Bucket string
	MaxTTL time.Duration
	Memory bool
	Clock  func() time.Time
}

// NewNATSStore provisions the cache bucket and returns a store on it.
func NewNATSStore(ctx context.Context, client *kvstore.Client, cfg NATSStoreConfig) (*NATSStore, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = "geomarket_cache"
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = 24 * time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	kv, err := client.KeyValue(ctx, kvstore.BucketConfig{
		Name:        cfg.Bucket,
		Description: "geomarket L2 query cache",
		TTL:         cfg.MaxTTL,
		Memory:      cfg.Memory,
	})
	if err != nil {
		return nil, err
	}
	return &NATSStore{client: client, kv: kv, now: cfg.Clock}, nil
}

func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeKey(encoded string) (string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Get implements Store.
func (s *NATSStore) Get(ctx context.Context, key string) (Item, bool, error) {
	var entry jetstream.KeyValueEntry
	err := s.client.Do(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.kv.Get(ctx, encodeKey(key))
		return err
	})
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, fmt.Errorf("nats kv get: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return Item{}, false, fmt.Errorf("decode cache envelope: %w", err)
	}

	expiresAt := time.Unix(0, env.ExpiresAt)
	if s.now().After(expiresAt) {
		return Item{}, false, nil
	}
	return Item{Value: env.Value, ExpiresAt: expiresAt}, true, nil
}

// Set implements Store. value must be valid JSON.
func (s *NATSStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := json.Marshal(envelope{
		ExpiresAt: s.now().Add(ttl).UnixNano(),
		Value:     value,
	})
	if err != nil {
		return fmt.Errorf("encode cache envelope: %w", err)
	}

	return s.client.Do(ctx, func(ctx context.Context) error {
		_, err := s.kv.Put(ctx, encodeKey(key), data)
		return err
	})
}

// Delete implements Store.
func (s *NATSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Do(ctx, func(ctx context.Context) error {
		return s.kv.Purge(ctx, encodeKey(key))
	})
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// DeleteMatching implements Store by listing every key and matching the
// decoded logical key against pattern.
func (s *NATSStore) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	var encoded []string
	err := s.client.Do(ctx, func(ctx context.Context) error {
		lister, err := s.kv.ListKeys(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = lister.Stop() }()

		for k := range lister.Keys() {
			encoded = append(encoded, k)
		}
		return nil
	})
	if err != nil && !errors.Is(err, jetstream.ErrNoKeysFound) {
		return 0, fmt.Errorf("list cache keys: %w", err)
	}

	removed := 0
	for _, k := range encoded {
		key, ok := decodeKey(k)
		if !ok || !matchKey(pattern, key) {
			continue
		}
		if err := s.client.Do(ctx, func(ctx context.Context) error {
			return s.kv.Purge(ctx, k)
		}); err != nil {
			return removed, fmt.Errorf("purge %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}

// Stats implements Store.
func (s *NATSStore) Stats(ctx context.Context) StoreStats {
	st := StoreStats{Backend: "nats", Connected: s.client.Connected()}

	var status jetstream.KeyValueStatus
	err := s.client.Do(ctx, func(ctx context.Context) error {
		var err error
		status, err = s.kv.Status(ctx)
		return err
	})
	if err != nil {
		st.Error = err.Error()
		logging.Ctx(ctx).Debug().Err(err).Msg("NATS cache status unavailable")
		return st
	}
	st.Keys = status.Values()
	st.Bytes = status.Bytes()
	return st
}

// Close implements Store. The shared client is closed by its owner.
func (s *NATSStore) Close() error { return nil }
