// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog"

	"github.com/tomtom215/geomarket/internal/logging"
)

const (
	defaultReadyTimeout = 30 * time.Second
	// Cache values and index cells stay far below this.
	maxPayload = 8 << 20
)

// ServerConfig configures the embedded NATS server. The server's own log
// lines go to the zerolog global at warn and above unless Quiet is set.
type ServerConfig struct {
	Host      string
	Port      int // -1 picks a random free port
	StoreDir  string
	MaxMemory int64
	MaxStore  int64
	Quiet     bool

	ReadyTimeout time.Duration // 30s
}

// EmbeddedServer is an in-process NATS server with JetStream, so a single
// node runs the L2 cache, geo index and event stream without a broker.
type EmbeddedServer struct {
	ns *server.Server
}

// NewEmbeddedServer starts the server and waits until it accepts clients.
func NewEmbeddedServer(cfg ServerConfig) (*EmbeddedServer, error) {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}

	ns, err := server.NewServer(&server.Options{
		ServerName:         "geomarket",
		Host:               cfg.Host,
		Port:               cfg.Port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		MaxPayload:         maxPayload,
		NoLog:              cfg.Quiet,
		NoSigs:             true,
	})
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	if !cfg.Quiet {
		ns.SetLogger(natsLogger{logging.WithComponent("nats-server")}, false, false)
	}

	go ns.Start()
	if !ns.ReadyForConnections(cfg.ReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready after %s", cfg.ReadyTimeout)
	}
	return &EmbeddedServer{ns: ns}, nil
}

func (s *EmbeddedServer) ClientURL() string { return s.ns.ClientURL() }

// Ready reports whether the server is running with JetStream available.
func (s *EmbeddedServer) Ready() error {
	switch {
	case !s.ns.Running():
		return errors.New("embedded NATS server is not running")
	case !s.ns.JetStreamEnabled():
		return errors.New("embedded NATS server has JetStream disabled")
	}
	return nil
}

// Shutdown stops the server and waits for it to finish, or for ctx.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.ns.Shutdown()
	done := make(chan struct{})
	go func() {
		s.ns.WaitForShutdown()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// natsLogger adapts server.Logger to zerolog. Notices are logged at debug
// since the server is chatty at startup.
type natsLogger struct{ log zerolog.Logger }

func (l natsLogger) Noticef(format string, v ...any) { l.log.Debug().Msgf(format, v...) }
func (l natsLogger) Warnf(format string, v ...any)   { l.log.Warn().Msgf(format, v...) }
func (l natsLogger) Errorf(format string, v ...any)  { l.log.Error().Msgf(format, v...) }
func (l natsLogger) Fatalf(format string, v ...any)  { l.log.Error().Msgf(format, v...) }
func (l natsLogger) Debugf(format string, v ...any)  { l.log.Debug().Msgf(format, v...) }
func (l natsLogger) Tracef(format string, v ...any)  { l.log.Trace().Msgf(format, v...) }
