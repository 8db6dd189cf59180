// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/geomarket/internal/logging"
)

// PeriodicService runs a task every interval until its context ends.
//
// Task errors are logged and do not end the loop. Panics propagate to
// suture.
type PeriodicService struct {
	name       string
	interval   time.Duration
	runOnStart bool
	task       func(ctx context.Context) error
}

// NewPeriodicService creates a periodic service. A non-positive interval
// becomes one minute.
func NewPeriodicService(name string, interval time.Duration, runOnStart bool, task func(ctx context.Context) error) *PeriodicService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PeriodicService{
		name:       name,
		interval:   interval,
		runOnStart: runOnStart,
		task:       task,
	}
}

// Serve implements suture.Service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	log := logging.WithComponent(p.name)

	if p.runOnStart {
		p.run(ctx, &log)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.run(ctx, &log)
		}
	}
}

func (p *PeriodicService) run(ctx context.Context, log *zerolog.Logger) {
	start := time.Now()
	err := p.task(ctx)
	switch {
	case err == nil:
		log.Debug().Dur("elapsed", time.Since(start)).Msg("Periodic task completed")
	case errors.Is(err, context.Canceled):
	default:
		log.Warn().Err(err).Msg("Periodic task failed")
	}
}

// String implements fmt.Stringer for suture's logs.
func (p *PeriodicService) String() string {
	return p.name
}
