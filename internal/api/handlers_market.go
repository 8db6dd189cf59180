// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/geomarket/internal/market"
)

// MarketOverview handles GET /api/v1/market/overview.
func (h *Handler) MarketOverview(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	overview, err := h.market.Overview(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, overview, start)
}

// MarketLatest handles GET /api/v1/market/{ticker}/latest.
func (h *Handler) MarketLatest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	bar, err := h.market.Latest(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, bar, start)
}

// MarketHistory handles GET /api/v1/market/{ticker}/history?start=&end=&limit=.
// start and end are inclusive YYYY-MM-DD dates in UTC.
func (h *Handler) MarketHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, ok := getIntParam(r, "limit", 0)
	if !ok {
		respondError(w, http.StatusBadRequest, codeValidation, "limit must be an integer", nil)
		return
	}

	req := HistoryRequest{
		Ticker: strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker"))),
		Start:  r.URL.Query().Get("start"),
		End:    r.URL.Query().Get("end"),
		Limit:  limit,
	}
	if !validateRequest(w, &req) {
		return
	}

	q := market.HistoryQuery{Ticker: req.Ticker, Limit: req.Limit}
	q.Start, q.End = dayRange(req.Start, req.End)

	bars, err := h.market.History(r.Context(), q)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, map[string]interface{}{
		"ticker": req.Ticker,
		"count":  len(bars),
		"bars":   bars,
	}, start)
}

// MarketBulk handles POST /api/v1/market/bulk-with-location.
func (h *Handler) MarketBulk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req BulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.normalize()
	if !validateRequest(w, &req) {
		return
	}

	series, err := h.market.Bulk(r.Context(), req.query())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, map[string]interface{}{
		"count":  len(series),
		"series": series,
	}, start)
}

// CompanySearch handles GET /api/v1/companies/search?q=&limit=.
func (h *Handler) CompanySearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, ok := getIntParam(r, "limit", 0)
	if !ok {
		respondError(w, http.StatusBadRequest, codeValidation, "limit must be an integer", nil)
		return
	}

	req := SearchRequest{Query: strings.TrimSpace(r.URL.Query().Get("q")), Limit: limit}
	if !validateRequest(w, &req) {
		return
	}

	companies, err := h.market.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, map[string]interface{}{
		"query":     req.Query,
		"count":     len(companies),
		"companies": companies,
	}, start)
}
