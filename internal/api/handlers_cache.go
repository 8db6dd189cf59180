// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/cache"
	"github.com/tomtom215/geomarket/internal/logging"
)

// maxPatternLength bounds the glob accepted by CacheClear.
const maxPatternLength = 200

// CacheStatsResponse is the body of GET /api/v1/cache/stats.
type CacheStatsResponse struct {
	L1       cache.Stats                 `json:"l1"`
	L2       cache.StoreStats            `json:"l2"`
	Breakers map[string]breaker.Snapshot `json:"breakers"`
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	st := h.cache.Stats(r.Context())
	resp := CacheStatsResponse{L1: st.L1, L2: st.L2, Breakers: map[string]breaker.Snapshot{}}
	if h.breakers != nil {
		resp.Breakers = h.breakers.Snapshot()
	}
	w.Header().Set("Cache-Control", "no-store")
	respondSuccess(w, resp, start)
}

// CacheClear handles POST /api/v1/cache/clear?pattern=<glob>. It clears
// matching L2 keys and then all of L1, since L1 cannot be searched by
// pattern. The pattern defaults to "*".
func (h *Handler) CacheClear(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}
	if len(pattern) > maxPatternLength {
		respondError(w, http.StatusBadRequest, codeValidation, "pattern is too long", nil)
		return
	}

	cleared, err := h.cache.ClearPattern(r.Context(), pattern)
	l1 := h.cache.ClearL1()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("pattern", sanitizeLogValue(pattern)).
		Int("cleared", cleared).
		Int("l1_cleared", l1).
		Msg("Cache cleared by operator")

	w.Header().Set("Cache-Control", "no-store")
	respondSuccess(w, map[string]interface{}{
		"pattern":    pattern,
		"cleared":    cleared,
		"l1_cleared": l1,
	}, start)
}
