// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/geomarket/internal/spatial"
)

// SpatialCircle handles POST /api/v1/spatial/circle.
func (h *Handler) SpatialCircle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req CircleRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	result, err := h.spatial.Circle(r.Context(), req.query())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, result, start)
}

// SpatialPolygon handles POST /api/v1/spatial/polygon.
func (h *Handler) SpatialPolygon(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req PolygonRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	result, err := h.spatial.Polygon(r.Context(), req.query())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, result, start)
}

// SpatialState handles GET /api/v1/spatial/state/{state}?limit=&include_market_data=.
func (h *Handler) SpatialState(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, ok := getIntParam(r, "limit", 0)
	if !ok {
		respondError(w, http.StatusBadRequest, codeValidation, "limit must be an integer", nil)
		return
	}

	result, err := h.spatial.State(r.Context(), spatial.StateQuery{
		State:             chi.URLParam(r, "state"),
		Limit:             limit,
		IncludeMarketData: getBoolParam(r, "include_market_data"),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, result, start)
}

// SpatialNearbyTicker handles POST /api/v1/spatial/nearby-ticker.
func (h *Handler) SpatialNearbyTicker(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req NearbyTickerRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	result, err := h.spatial.NearbyTicker(r.Context(), req.query())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, result, start)
}

// SpatialRegionStats handles POST /api/v1/spatial/regional-stats.
func (h *Handler) SpatialRegionStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req RegionStatsRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}
	if req.missingCenter() {
		respondError(w, http.StatusBadRequest, codeValidation, "circle regions require latitude and longitude", nil)
		return
	}

	stats, err := h.spatial.Region(r.Context(), req.query())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, stats, start)
}
