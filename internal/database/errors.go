// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package database

import (
	"errors"
	"io"

	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/validation"
)

var (
	// ErrInvalidTicker rejects a ticker that is not 1-10 alphanumerics.
	ErrInvalidTicker = validation.ErrInvalidTicker

	// ErrUnsafeQuery rejects search text containing SQL keywords or
	// comment sequences.
	ErrUnsafeQuery = validation.ErrUnsafeQuery

	// ErrInvalidState rejects a state that is not a two-letter code.
	ErrInvalidState = validation.ErrInvalidState

	// ErrNotFound is returned when a ticker has no row.
	ErrNotFound = errors.New("not found")
)

// closeWithLog closes a resource and logs any error.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource on an error path where the close error
// is not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
