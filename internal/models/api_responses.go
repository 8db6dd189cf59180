// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package models

import "time"

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse is the envelope for every HTTP response: Data on success,
// Error on failure.
//
//	{
//	  "status": "success",
//	  "data": {"query": "circle", "count": 3, "companies": [...]},
//	  "metadata": {"timestamp": "2026-01-05T12:00:00Z", "query_time_ms": 12, "request_id": "..."}
//	}
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

// APIError codes:
//   - VALIDATION_ERROR: invalid input, rejected before any backend call
//   - NOT_FOUND: the ticker or region has no data
//   - SERVICE_UNAVAILABLE: a circuit is open; see the Retry-After header
//   - DEPENDENCY_ERROR: a backing store failed
//   - TIMEOUT: a backing store did not answer in time
//   - AUTHENTICATION_ERROR / AUTHORIZATION_ERROR: operator credential problems
//   - RATE_LIMIT_EXCEEDED: too many requests
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Success wraps data, recording how long the request took.
func Success(data any, elapsed time.Duration) *APIResponse {
	return &APIResponse{
		Status:   StatusSuccess,
		Data:     data,
		Metadata: Metadata{Timestamp: time.Now().UTC(), QueryTimeMS: elapsed.Milliseconds()},
	}
}

// Failure wraps e in an error envelope.
func Failure(e *APIError) *APIResponse {
	return &APIResponse{
		Status:   StatusError,
		Metadata: Metadata{Timestamp: time.Now().UTC()},
		Error:    e,
	}
}
