// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CorrelationIDKey is both the log field and the message metadata key for
// correlation IDs.
const CorrelationIDKey = "correlation_id"

type fieldsKey struct{}

type loggerKey struct{}

// Fields are the request-scoped values Ctx adds to every log line. A
// request carries RequestID and CorrelationID; a market event carries
// CorrelationID, EventID and EventType.
type Fields struct {
	RequestID     string
	CorrelationID string
	EventID       string
	EventType     string
}

// FieldsFromContext returns the fields stored in ctx, or the zero value.
func FieldsFromContext(ctx context.Context) Fields {
	f, _ := ctx.Value(fieldsKey{}).(Fields)
	return f
}

// withFields stores a modified copy so parent contexts are never affected.
func withFields(ctx context.Context, update func(*Fields)) context.Context {
	f := FieldsFromContext(ctx)
	update(&f)
	return context.WithValue(ctx, fieldsKey{}, f)
}

// GenerateCorrelationID returns a short random ID (8 hex characters).
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// GenerateRequestID returns a random UUID.
func GenerateRequestID() string {
	return uuid.New().String()
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return withFields(ctx, func(f *Fields) { f.CorrelationID = id })
}

func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

func CorrelationIDFromContext(ctx context.Context) string {
	return FieldsFromContext(ctx).CorrelationID
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withFields(ctx, func(f *Fields) { f.RequestID = id })
}

func RequestIDFromContext(ctx context.Context) string {
	return FieldsFromContext(ctx).RequestID
}

// ContextWithEvent tags ctx with the market event being processed.
func ContextWithEvent(ctx context.Context, id, eventType string) context.Context {
	return withFields(ctx, func(f *Fields) {
		f.EventID = id
		f.EventType = eventType
	})
}

// ContextWithLogger stores a logger that Ctx uses instead of the global one.
//
//nolint:gocritic // zerolog.Logger is passed by value throughout zerolog
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Ctx returns the context logger (or the global one) with the non-empty
// Fields attached.
//
//	logging.Ctx(ctx).Warn().Err(err).Msg("L2 cache operation failed")
func Ctx(ctx context.Context) *zerolog.Logger {
	base, ok := ctx.Value(loggerKey{}).(zerolog.Logger)
	if !ok {
		base = Logger()
	}

	f := FieldsFromContext(ctx)
	if f == (Fields{}) {
		return &base
	}

	lc := base.With()
	for _, kv := range [...]struct{ key, val string }{
		{"request_id", f.RequestID},
		{CorrelationIDKey, f.CorrelationID},
		{"event_id", f.EventID},
		{"event_type", f.EventType},
	} {
		if kv.val != "" {
			lc = lc.Str(kv.key, kv.val)
		}
	}
	l := lc.Logger()
	return &l
}

// WithComponent returns a child of the global logger tagged with component,
// which is the supervised service name for long-running loops.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
