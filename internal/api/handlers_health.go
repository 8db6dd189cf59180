// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/models"
)

// readinessTimeout bounds each dependency ping.
const readinessTimeout = 2 * time.Second

// LivenessResponse is the body of GET /api/v1/health/live.
type LivenessResponse struct {
	Alive         bool    `json:"alive"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ReadinessResponse is the body of GET /api/v1/health/ready. The KV store
// counts as connected when none is configured.
type ReadinessResponse struct {
	Ready         bool                        `json:"ready"`
	Database      bool                        `json:"database"`
	KVConfigured  bool                        `json:"kv_configured"`
	KV            bool                        `json:"kv"`
	UptimeSeconds float64                     `json:"uptime_seconds"`
	Breakers      map[string]breaker.Snapshot `json:"breakers,omitempty"`
}

// HealthLive answers 200 while the process is up, whatever the state of its
// dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.Success(LivenessResponse{
		Alive:         true,
		UptimeSeconds: h.uptime(),
	}, 0))
}

// HealthReady answers 503 when DuckDB or a configured KV store does not
// respond to a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rr := ReadinessResponse{
		Database:      ping(ctx, h.db),
		KVConfigured:  h.kv != nil,
		UptimeSeconds: h.uptime(),
	}
	rr.KV = !rr.KVConfigured || ping(ctx, h.kv)
	rr.Ready = rr.Database && rr.KV
	if h.breakers != nil {
		rr.Breakers = h.breakers.Snapshot()
	}

	resp := models.Success(rr, 0)
	code := http.StatusOK
	if !rr.Ready {
		code = http.StatusServiceUnavailable
		resp.Status = "not_ready"
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, code, resp)
}

func (h *Handler) uptime() float64 { return time.Since(h.startTime).Seconds() }

func ping(ctx context.Context, p Pinger) bool {
	if p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	return p.Ping(ctx) == nil
}
