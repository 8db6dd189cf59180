// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/geomarket/internal/logging"
)

func TestRequestID_GeneratesNewID(t *testing.T) {
	var capturedID, capturedCorrelation string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetRequestID(r.Context())
		capturedCorrelation = logging.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	responseID := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(responseID); err != nil {
		t.Errorf("Response X-Request-ID is not a valid UUID: %v", err)
	}
	if capturedID != responseID {
		t.Errorf("Context ID (%s) doesn't match response header ID (%s)", capturedID, responseID)
	}
	if capturedCorrelation == "" {
		t.Error("Expected a correlation ID in context")
	}
	if got := rec.Header().Get(CorrelationIDHeader); got != capturedCorrelation {
		t.Errorf("X-Correlation-ID = %q, want %q", got, capturedCorrelation)
	}
}

func TestRequestID_PreservesUpstreamIDs(t *testing.T) {
	var capturedID, capturedCorrelation string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetRequestID(r.Context())
		capturedCorrelation = logging.CorrelationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "upstream-req-1")
	req.Header.Set(CorrelationIDHeader, "trace-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if capturedID != "upstream-req-1" {
		t.Errorf("request ID = %q, want upstream-req-1", capturedID)
	}
	if capturedCorrelation != "trace-42" {
		t.Errorf("correlation ID = %q, want trace-42", capturedCorrelation)
	}
	if rec.Header().Get(RequestIDHeader) != "upstream-req-1" {
		t.Errorf("response header = %q", rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_RejectsUnsafeUpstreamID(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"newline", "abc\ninjected"},
		{"space", "abc def"},
		{"too long", strings.Repeat("a", maxInboundIDLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedID string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				capturedID = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(RequestIDHeader, tt.id)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if capturedID == tt.id {
				t.Errorf("unsafe upstream ID %q was accepted", tt.id)
			}
			if _, err := uuid.Parse(capturedID); err != nil {
				t.Errorf("replacement ID %q is not a UUID", capturedID)
			}
		})
	}
}
