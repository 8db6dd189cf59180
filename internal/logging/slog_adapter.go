// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// Log sources for libraries that only accept *slog.Logger.
const (
	SourceSupervisor = "supervisor"
	SourceWatermill  = "watermill"
)

// SlogHandler is a slog.Handler that writes through zerolog. Attributes
// added with WithAttrs are rendered once into the child logger; the open
// group is kept as a dotted key prefix.
type SlogHandler struct {
	logger zerolog.Logger
	prefix string
}

// NewSlogHandler wraps the global logger, tagging every line with source.
func NewSlogHandler(source string) *SlogHandler {
	return NewSlogHandlerWithLogger(Logger(), source)
}

//nolint:gocritic // zerolog.Logger is passed by value throughout zerolog
func NewSlogHandlerWithLogger(logger zerolog.Logger, source string) *SlogHandler {
	if source != "" {
		logger = logger.With().Str("source", source).Logger()
	}
	return &SlogHandler{logger: logger}
}

// NewSlogLogger returns a *slog.Logger for source.
//
//	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logging.SourceSupervisor), cfg)
func NewSlogLogger(source string) *slog.Logger {
	return slog.New(NewSlogHandler(source))
}

func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	zl := zerologLevel(level)
	return zl >= h.logger.GetLevel() && zl >= zerolog.GlobalLevel()
}

// Handle writes the record. Request and event fields stored in ctx are
// added the same way Ctx adds them.
//
//nolint:gocritic // slog.Handler takes the record by value
func (h *SlogHandler) Handle(ctx context.Context, record slog.Record) error {
	event := h.logger.WithLevel(zerologLevel(record.Level))
	if event == nil {
		return nil
	}

	if ctx != nil {
		f := FieldsFromContext(ctx)
		putStr(event, "request_id", f.RequestID)
		putStr(event, CorrelationIDKey, f.CorrelationID)
		putStr(event, "event_id", f.EventID)
		putStr(event, "event_type", f.EventType)
	}

	record.Attrs(func(a slog.Attr) bool {
		appendAttr(event, h.prefix, a)
		return true
	})
	event.Msg(record.Message)
	return nil
}

func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	lc := h.logger.With()
	for _, a := range attrs {
		lc = contextAttr(lc, h.prefix, a)
	}
	return &SlogHandler{logger: lc.Logger(), prefix: h.prefix}
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SlogHandler{logger: h.logger, prefix: h.prefix + name + "."}
}

func putStr(e *zerolog.Event, key, val string) {
	if val != "" {
		e.Str(key, val)
	}
}

// appendAttr adds a to e. Empty attrs are dropped and inline groups (empty
// key) are flattened, as slog.Handler requires.
func appendAttr(e *zerolog.Event, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		nested := prefix
		if a.Key != "" {
			nested = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(e, nested, ga)
		}
		return
	}

	key := prefix + a.Key
	v := a.Value
	switch v.Kind() {
	case slog.KindString:
		e.Str(key, v.String())
	case slog.KindInt64:
		e.Int64(key, v.Int64())
	case slog.KindUint64:
		e.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		e.Float64(key, v.Float64())
	case slog.KindBool:
		e.Bool(key, v.Bool())
	case slog.KindDuration:
		e.Dur(key, v.Duration())
	case slog.KindTime:
		e.Time(key, v.Time())
	default:
		if err, ok := v.Any().(error); ok {
			e.AnErr(key, err)
			return
		}
		e.Interface(key, v.Any())
	}
}

// contextAttr is appendAttr for attributes fixed by WithAttrs.
func contextAttr(lc zerolog.Context, prefix string, a slog.Attr) zerolog.Context {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return lc
	}
	if a.Value.Kind() == slog.KindGroup {
		nested := prefix
		if a.Key != "" {
			nested = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			lc = contextAttr(lc, nested, ga)
		}
		return lc
	}

	key := prefix + a.Key
	v := a.Value
	switch v.Kind() {
	case slog.KindString:
		return lc.Str(key, v.String())
	case slog.KindInt64:
		return lc.Int64(key, v.Int64())
	case slog.KindUint64:
		return lc.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		return lc.Float64(key, v.Float64())
	case slog.KindBool:
		return lc.Bool(key, v.Bool())
	case slog.KindDuration:
		return lc.Dur(key, v.Duration())
	case slog.KindTime:
		return lc.Time(key, v.Time())
	default:
		if err, ok := v.Any().(error); ok {
			return lc.AnErr(key, err)
		}
		return lc.Interface(key, v.Any())
	}
}

// zerologLevel maps slog levels onto zerolog's, rounding down so custom
// levels between the named ones keep their severity band.
func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelDebug:
		return zerolog.TraceLevel
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
