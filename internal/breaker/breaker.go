// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

// Package breaker guards calls to backing stores with a circuit breaker.
//
// Each logical dependency ("timeseries", "kvstore") owns one Breaker. The
// breaker opens after FailureThreshold consecutive non-transient failures,
// rejects calls with ErrCircuitOpen for RecoveryTimeout, then lets a single
// trial call through. A successful trial closes the circuit and resets the
// counter; a failed trial opens it again.
//
// Timeouts, cancellations and resource exhaustion (EMFILE, ENFILE, EAGAIN)
// are transient: they are returned to the caller but never advance the
// failure count. Every call runs under CallTimeout.
//
// The state machine is sony/gobreaker; timing uses the wall clock.
package breaker

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/metrics"
)

// Default settings applied when a field is left zero.
const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 30 * time.Second
	DefaultCallTimeout      = 30 * time.Second
)

// State is the circuit state of a Breaker.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker.
type Settings struct {
	Name             string
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
	CallTimeout      time.Duration

	// IsSuccessful marks errors that describe a healthy dependency answering
	// "no" (sql.ErrNoRows, key not found). They are returned to the caller but
	// count as successes. Optional.
	IsSuccessful func(err error) bool
}

func (s Settings) withDefaults() Settings {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.RecoveryTimeout <= 0 {
		s.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = DefaultCallTimeout
	}
	return s
}

// Snapshot is a point-in-time view of a breaker for the stats endpoint.
type Snapshot struct {
	State               string `json:"state"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	Requests            uint32 `json:"requests"`
}

// Breaker is a named circuit breaker. It is safe for concurrent use.
type Breaker struct {
	name     string
	settings Settings
	cb       *gobreaker.CircuitBreaker[any]
}

// New creates a closed breaker.
func New(s Settings) *Breaker {
	s = s.withDefaults()
	b := &Breaker{name: s.Name, settings: s}

	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(s.Name).Set(0)

	isSuccessful := func(err error) bool {
		return err == nil || (s.IsSuccessful != nil && s.IsSuccessful(err))
	}

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1, // single half-open trial
		Interval:    0, // counts only reset on success or state change
		Timeout:     s.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		IsSuccessful:  isSuccessful,
		IsExcluded:    IsTransient,
		OnStateChange: b.onStateChange,
	})

	return b
}

// onStateChange runs under gobreaker's lock; it only logs and updates gauges.
func (b *Breaker) onStateChange(name string, from, to gobreaker.State) {
	fromStr, toStr := fromGobreaker(from).String(), fromGobreaker(to).String()

	event := logging.Info()
	if to == gobreaker.StateOpen {
		event = logging.Warn().Dur("recovery_timeout", b.settings.RecoveryTimeout)
	}
	event.Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state transition")

	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
	metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
	if to == gobreaker.StateClosed {
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
	}
}

// Name returns the dependency name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state. An open breaker whose recovery timeout
// has elapsed reports half-open.
func (b *Breaker) State() State {
	return fromGobreaker(b.cb.State())
}

// ConsecutiveFailures returns the current non-transient failure streak.
func (b *Breaker) ConsecutiveFailures() uint32 {
	return b.cb.Counts().ConsecutiveFailures
}

// Snapshot returns the breaker's state and counters.
func (b *Breaker) Snapshot() Snapshot {
	state := b.State()
	counts := b.cb.Counts()
	return Snapshot{
		State:               state.String(),
		ConsecutiveFailures: counts.ConsecutiveFailures,
		Requests:            counts.Requests,
	}
}

// RecoveryTimeout returns how long the breaker stays open.
func (b *Breaker) RecoveryTimeout() time.Duration { return b.settings.RecoveryTimeout }

// Call runs work through the breaker under the per-call timeout.
//
// When the circuit is open Call returns an *OpenError without invoking work.
// A work error caused by the call deadline or a canceled ctx is reported as
// transient.
func (b *Breaker) Call(ctx context.Context, work func(ctx context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, Transient(err)
	}

	result, err := b.cb.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, b.settings.CallTimeout)
		defer cancel()

		res, err := work(callCtx)
		if err != nil && callCtx.Err() != nil && !IsTransient(err) {
			err = Transient(errors.Join(err, callCtx.Err()))
		}
		return res, err
	})

	b.record(err)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &OpenError{Name: b.name, RetryAfter: b.settings.RecoveryTimeout}
	}
	return result, err
}

// Do is Call for work that returns only an error.
func (b *Breaker) Do(ctx context.Context, work func(ctx context.Context) error) error {
	_, err := b.Call(ctx, func(ctx context.Context) (any, error) {
		return nil, work(ctx)
	})
	return err
}

func (b *Breaker) record(err error) {
	var result string
	switch {
	case err == nil:
		result = "success"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
		logging.Debug().Str("breaker", b.name).Msg("Circuit open, request rejected")
	case IsTransient(err):
		result = "transient"
	case b.settings.IsSuccessful != nil && b.settings.IsSuccessful(err):
		result = "success"
	default:
		result = "failure"
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, result).Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(b.cb.Counts().ConsecutiveFailures))
}

// Execute runs typed work through b.
//
//	bar, err := breaker.Execute(ctx, b, func(ctx context.Context) (*Bar, error) {
//		return queryLatest(ctx, ticker)
//	})
func Execute[T any](ctx context.Context, b *Breaker, work func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	result, err := b.Call(ctx, func(ctx context.Context) (any, error) {
		return work(ctx)
	})
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, errors.New("circuit breaker: unexpected result type")
	}
	return typed, nil
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
