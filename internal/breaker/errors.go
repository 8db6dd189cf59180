// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package breaker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

var (
	// ErrCircuitOpen is returned without invoking the work when the breaker
	// is open, or when its half-open trial slot is already taken.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTransient marks failures that are expected to clear on their own.
	// Wrap it to keep a failure out of the consecutive-failure count.
	ErrTransient = errors.New("transient failure")
)

// OpenError carries the breaker name and a retry hint for fail-fast rejections.
// It matches ErrCircuitOpen with errors.Is.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, ErrCircuitOpen.Error())
}

func (e *OpenError) Unwrap() error {
	return ErrCircuitOpen
}

// Transient wraps err so that IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient reports whether err is a timeout, a cancellation or an
// OS-level resource exhaustion error. Such failures do not count toward
// opening a circuit.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrTransient),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, syscall.EMFILE),
		errors.Is(err, syscall.ENFILE),
		errors.Is(err, syscall.EAGAIN):
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
