// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/logging"
)

// Negative entries are short-lived so a failing backend is retried soon.
const (
	negativeTTL   = 30 * time.Second
	negativeL1TTL = 10 * time.Second
)

// CachedError is returned by Loader.Get when the cache holds a recorded
// failure for the key. It unwraps to the ErrorKinds sentinel the original
// failure matched, if any.
type CachedError struct {
	Key      string
	Message  string
	CachedAt time.Time

	kind error
}

func (e *CachedError) Error() string {
	return fmt.Sprintf("cached failure for %s: %s", e.Key, e.Message)
}

func (e *CachedError) Unwrap() error { return e.kind }

// LoaderOptions configures a Loader.
type LoaderOptions[A, T any] struct {
	TTL   time.Duration
	L1TTL time.Duration

	// KeyPrefix is prepended to every key, before the loader name.
	KeyPrefix string

	// KeyFunc derives the key suffix from the arguments. The default
	// hashes the JSON encoding of args.
	KeyFunc func(args A) string

	// CacheErrors records failures for a short time so repeated calls do
	// not hammer a failing backend. Off by default. Transient failures and
	// open-circuit rejections are never recorded.
	CacheErrors bool

	// ErrorKinds are sentinels that a recorded failure keeps: a cached
	// failure that matched ErrorKinds[i] still matches it with errors.Is.
	ErrorKinds []error

	// ShouldCache, if set, decides whether a successful result is stored.
	ShouldCache func(result T) bool
}

// Loader wraps a load function with the tiered cache. Concurrent misses
// for the same key share one call to the load function.
type Loader[A, T any] struct {
	cache *Tiered
	name  string
	opts  LoaderOptions[A, T]
	load  func(ctx context.Context, args A) (T, error)
	group singleflight.Group
}

type loaderRecord[T any] struct {
	Value    T      `json:"value"`
	Error    string `json:"error,omitempty"`
	Kind     int    `json:"kind,omitempty"` // 1-based index into ErrorKinds
	CachedAt int64  `json:"cached_at,omitempty"`
}

// NewLoader returns a Loader named name. The name is part of every key, so
// two loaders must not share one.
func NewLoader[A, T any](c *Tiered, name string, opts LoaderOptions[A, T], load func(ctx context.Context, args A) (T, error)) *Loader[A, T] {
	return &Loader[A, T]{cache: c, name: name, opts: opts, load: load}
}

// Key returns the logical cache key for args.
func (l *Loader[A, T]) Key(args A) string {
	if l.opts.KeyFunc != nil {
		return l.opts.KeyPrefix + l.name + ":" + l.opts.KeyFunc(args)
	}
	return l.opts.KeyPrefix + GenerateKey(l.name, args)
}

// Get returns the cached result for args, loading and caching it on a miss.
func (l *Loader[A, T]) Get(ctx context.Context, args A) (T, error) {
	key := l.Key(args)

	if rec, ok := GetJSON[loaderRecord[T]](ctx, l.cache, key); ok {
		if rec.Error != "" {
			var zero T
			return zero, &CachedError{
				Key:      key,
				Message:  rec.Error,
				CachedAt: time.Unix(rec.CachedAt, 0),
				kind:     l.kindAt(rec.Kind),
			}
		}
		return rec.Value, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		return l.fill(ctx, key, args)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

// Refresh loads args unconditionally and overwrites the cached entry.
func (l *Loader[A, T]) Refresh(ctx context.Context, args A) (T, error) {
	return l.fill(ctx, l.Key(args), args)
}

// Invalidate removes the cached entry for args from both tiers.
func (l *Loader[A, T]) Invalidate(ctx context.Context, args A) {
	l.cache.Delete(ctx, l.Key(args))
}

func (l *Loader[A, T]) fill(ctx context.Context, key string, args A) (T, error) {
	result, err := l.load(ctx, args)
	if err != nil {
		if l.shouldRecord(err) {
			rec := loaderRecord[T]{Error: err.Error(), Kind: l.kindOf(err), CachedAt: time.Now().Unix()}
			if serr := SetJSON(ctx, l.cache, key, rec, negativeTTL, negativeL1TTL); serr != nil {
				logging.Ctx(ctx).Debug().Err(serr).Str("key", key).Msg("Could not cache failure")
			}
		}
		return result, err
	}

	if l.opts.ShouldCache != nil && !l.opts.ShouldCache(result) {
		return result, nil
	}
	if err := SetJSON(ctx, l.cache, key, loaderRecord[T]{Value: result}, l.opts.TTL, l.opts.L1TTL); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Could not cache result")
	}
	return result, nil
}

func (l *Loader[A, T]) shouldRecord(err error) bool {
	return l.opts.CacheErrors &&
		!breaker.IsTransient(err) &&
		!errors.Is(err, breaker.ErrCircuitOpen)
}

func (l *Loader[A, T]) kindOf(err error) int {
	for i, k := range l.opts.ErrorKinds {
		if errors.Is(err, k) {
			return i + 1
		}
	}
	return 0
}

func (l *Loader[A, T]) kindAt(i int) error {
	if i < 1 || i > len(l.opts.ErrorKinds) {
		return nil
	}
	return l.opts.ErrorKinds[i-1]
}
