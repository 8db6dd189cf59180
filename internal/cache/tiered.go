// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/metrics"
)

// Default tiering parameters.
const (
	DefaultNamespace = "geomarket"
	DefaultVersion   = "v1"
	DefaultL1TTLCap  = 60 * time.Second
	DefaultTTL       = 5 * time.Minute
)

// Config configures a Tiered cache.
type Config struct {
	Namespace string
	Version   string

	// L1TTLCap bounds how long any entry may live in L1.
	L1TTLCap time.Duration

	// DefaultTTL applies when Set is called with a non-positive ttl.
	DefaultTTL time.Duration

	// Clock overrides time.Now, for tests. It should match the clock
	// given to the L1 and L2 stores.
	Clock func() time.Time
}

// Tiered is the read-through, write-through two-tier cache.
type Tiered struct {
	l1     *Memory
	l2     Store
	prefix string
	l1Cap  time.Duration
	ttl    time.Duration
	now    func() time.Time
}

// TieredStats is reported by the cache stats endpoint.
type TieredStats struct {
	L1 Stats      `json:"l1"`
	L2 StoreStats `json:"l2"`
}

// NewTiered combines l1 and l2. l2 may be nil, in which case the cache is
// L1 only.
func NewTiered(l1 *Memory, l2 Store, cfg Config) *Tiered {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.L1TTLCap <= 0 {
		cfg.L1TTLCap = DefaultL1TTLCap
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Tiered{
		l1:     l1,
		l2:     l2,
		prefix: fmt.Sprintf("%s:cache:%s:", cfg.Namespace, cfg.Version),
		l1Cap:  cfg.L1TTLCap,
		ttl:    cfg.DefaultTTL,
		now:    cfg.Clock,
	}
}

// Key returns the namespaced form of a logical key.
func (t *Tiered) Key(key string) string {
	return t.prefix + key
}

// Get returns the serialized value for key. Errors from L2 are treated as a
// miss.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	full := t.Key(key)
	if v, ok := t.l1.Get(full); ok {
		return v, true
	}
	if t.l2 == nil {
		return nil, false
	}

	item, found, err := t.l2.Get(ctx, full)
	if err != nil {
		t.l2Failed(ctx, "get", full, err)
		return nil, false
	}
	if !found {
		metrics.CacheMisses.WithLabelValues(tierL2).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(tierL2).Inc()

	// Backfill must never outlive the L2 entry.
	if remaining := item.ExpiresAt.Sub(t.now()); remaining > 0 {
		t.l1.Set(full, item.Value, min(remaining, t.l1Cap))
	}
	return item.Value, true
}

// Set writes value to both tiers. L1 keeps it for min(ttl, L1 cap).
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	t.SetWithL1TTL(ctx, key, value, ttl, 0)
}

// SetWithL1TTL is Set with an explicit L1 lifetime. l1TTL is clamped to
// ttl; zero selects min(ttl, L1 cap).
func (t *Tiered) SetWithL1TTL(ctx context.Context, key string, value []byte, ttl, l1TTL time.Duration) {
	if ttl <= 0 {
		ttl = t.ttl
	}
	if l1TTL <= 0 {
		l1TTL = min(ttl, t.l1Cap)
	}
	l1TTL = min(l1TTL, ttl)

	full := t.Key(key)
	t.l1.Set(full, value, l1TTL)

	if t.l2 == nil {
		return
	}
	if err := t.l2.Set(ctx, full, value, ttl); err != nil {
		t.l2Failed(ctx, "set", full, err)
	}
}

// Delete removes key from both tiers.
func (t *Tiered) Delete(ctx context.Context, key string) {
	full := t.Key(key)
	t.l1.Delete(full)
	if t.l2 == nil {
		return
	}
	if err := t.l2.Delete(ctx, full); err != nil {
		t.l2Failed(ctx, "delete", full, err)
	}
}

// ClearPattern removes all L2 keys whose logical key matches the glob
// pattern. L1 is left untouched; see ClearL1.
func (t *Tiered) ClearPattern(ctx context.Context, pattern string) (int, error) {
	if t.l2 == nil {
		return 0, nil
	}
	n, err := t.l2.DeleteMatching(ctx, t.prefix+pattern)
	if err != nil {
		metrics.CacheL2Errors.WithLabelValues("clear").Inc()
		return n, fmt.Errorf("clear pattern %q: %w", pattern, err)
	}
	logging.Ctx(ctx).Info().Str("pattern", pattern).Int("cleared", n).Msg("Cache pattern cleared")
	return n, nil
}

// ClearL1 empties the in-process tier and returns how many entries it held.
func (t *Tiered) ClearL1() int {
	return t.l1.Clear()
}

// Stats returns both tiers' statistics.
func (t *Tiered) Stats(ctx context.Context) TieredStats {
	st := TieredStats{L1: t.l1.Stats()}
	if t.l2 == nil {
		st.L2 = StoreStats{Backend: "none"}
		return st
	}
	st.L2 = t.l2.Stats(ctx)
	return st
}

// Close releases the L2 store.
func (t *Tiered) Close() error {
	if t.l2 == nil {
		return nil
	}
	return t.l2.Close()
}

func (t *Tiered) l2Failed(ctx context.Context, op, key string, err error) {
	metrics.CacheL2Errors.WithLabelValues(op).Inc()
	logging.Ctx(ctx).Warn().Err(err).Str("op", op).Str("key", key).Msg("L2 cache operation failed")
}

// GetJSON reads key and decodes it into a T.
func GetJSON[T any](ctx context.Context, t *Tiered, key string) (T, bool) {
	var out T
	raw, ok := t.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		t.Delete(ctx, key)
		return out, false
	}
	return out, true
}

// SetJSON encodes value and writes it under key.
func SetJSON(ctx context.Context, t *Tiered, key string, value any, ttl, l1TTL time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	t.SetWithL1TTL(ctx, key, data, ttl, l1TTL)
	return nil
}
