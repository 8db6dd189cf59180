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

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/metrics"
)

// WarmTask loads one frequently requested value through its Loader so the
// next reader hits the cache.
type WarmTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// WarmerConfig configures a Warmer.
type WarmerConfig struct {
	// Interval between successful cycles.
	Interval time.Duration

	// RetryInterval is used instead of Interval after a cycle with failures.
	RetryInterval time.Duration

	// Rate caps task executions per second. Zero means unlimited.
	Rate float64

	// RunOnStart runs a cycle immediately instead of waiting one interval.
	RunOnStart bool
}

// Warmer periodically runs warm tasks. It implements suture.Service.
type Warmer struct {
	tasks   []WarmTask
	cfg     WarmerConfig
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewWarmer creates a warmer for tasks.
func NewWarmer(cfg WarmerConfig, tasks ...WarmTask) *Warmer {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Minute
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}

	return &Warmer{
		tasks:   tasks,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logging.With().Str("service", "cache-warmer").Logger(),
	}
}

// Serve runs warm cycles until ctx is canceled. A cycle in progress stops
// between tasks.
func (w *Warmer) Serve(ctx context.Context) error {
	w.logger.Info().
		Int("tasks", len(w.tasks)).
		Dur("interval", w.cfg.Interval).
		Msg("Cache warmer starting")

	next := w.cfg.Interval
	if w.cfg.RunOnStart {
		next = 0
	}

	timer := time.NewTimer(next)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Cache warmer stopping")
			return ctx.Err()
		case <-timer.C:
		}

		next = w.cfg.Interval
		if err := w.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn().Err(err).Dur("retry_in", w.cfg.RetryInterval).Msg("Cache warm cycle incomplete")
			next = w.cfg.RetryInterval
		}
		timer.Reset(next)
	}
}

// RunOnce runs every task once and returns the joined task errors.
func (w *Warmer) RunOnce(ctx context.Context) error {
	start := time.Now()
	var errs []error

	for _, task := range w.tasks {
		if err := w.limiter.Wait(ctx); err != nil {
			metrics.CacheWarmRuns.WithLabelValues("canceled").Inc()
			return err
		}
		if err := task.Run(ctx); err != nil {
			if ctx.Err() != nil {
				metrics.CacheWarmRuns.WithLabelValues("canceled").Inc()
				return ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		metrics.CacheWarmRuns.WithLabelValues("failed").Inc()
		return err
	}

	metrics.CacheWarmRuns.WithLabelValues("ok").Inc()
	w.logger.Debug().Int("tasks", len(w.tasks)).Dur("duration", time.Since(start)).Msg("Cache warm cycle complete")
	return nil
}

// String implements fmt.Stringer for suture logging.
func (w *Warmer) String() string {
	return "cache-warmer"
}
