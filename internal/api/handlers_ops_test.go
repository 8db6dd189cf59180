// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/cache"
	"github.com/tomtom215/geomarket/internal/config"
	"github.com/tomtom215/geomarket/internal/models"
)

func TestOperatorAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}

	tests := []struct {
		name string
		sec  config.SecurityConfig
		key  string
		want int
	}{
		{"development mode", config.SecurityConfig{}, "", http.StatusOK},
		{"missing key", config.SecurityConfig{OperatorAPIKey: "s3cret"}, "", http.StatusUnauthorized},
		{"wrong key", config.SecurityConfig{OperatorAPIKey: "s3cret"}, "guess", http.StatusForbidden},
		{"right key", config.SecurityConfig{OperatorAPIKey: "s3cret"}, "s3cret", http.StatusOK},
		{"hash match", config.SecurityConfig{OperatorAPIKeyHash: string(hash)}, "hashed-secret", http.StatusOK},
		{"hash mismatch", config.SecurityConfig{OperatorAPIKeyHash: string(hash)}, "s3cret", http.StatusForbidden},
		{
			"hash wins over plain key",
			config.SecurityConfig{OperatorAPIKey: "s3cret", OperatorAPIKeyHash: string(hash)},
			"s3cret",
			http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			OperatorAuth(tt.sec)(next).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCacheStats(t *testing.T) {
	c := &fakeCache{stats: cache.TieredStats{
		L1: cache.Stats{Size: 3, MaxSize: 10000, TotalHits: 7, HitRate: 0.7},
		L2: cache.StoreStats{Backend: "nats", Connected: true, Keys: 12, Bytes: 2048},
	}}
	h := newTestHandler(nil, nil, c)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}

	var got CacheStatsResponse
	decodeData(t, decodeEnvelope(t, rec), &got)
	if got.L1.Size != 3 || got.L1.MaxSize != 10000 || got.L1.HitRate != 0.7 {
		t.Errorf("l1 = %+v", got.L1)
	}
	if got.L2.Backend != "nats" || !got.L2.Connected || got.L2.Keys != 12 {
		t.Errorf("l2 = %+v", got.L2)
	}
	if got.Breakers[breaker.TimeSeries].State != "closed" {
		t.Errorf("breakers = %+v", got.Breakers)
	}
}

func TestCacheClear(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		wantPattern string
	}{
		{"default pattern", "/api/v1/cache/clear", "*"},
		{"explicit pattern", "/api/v1/cache/clear?pattern=spatial:circle:*", "spatial:circle:*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCache{cleared: 4, l1: 9}
			rec := serve(newTestHandler(nil, nil, c), httptest.NewRequest(http.MethodPost, tt.target, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
			}
			if len(c.patterns) != 1 || c.patterns[0] != tt.wantPattern {
				t.Errorf("patterns = %v, want [%s]", c.patterns, tt.wantPattern)
			}
			if c.l1Clears != 1 {
				t.Errorf("ClearL1 called %d times, want 1", c.l1Clears)
			}

			var body struct {
				Pattern string `json:"pattern"`
				Cleared int    `json:"cleared"`
			}
			decodeData(t, decodeEnvelope(t, rec), &body)
			if body.Pattern != tt.wantPattern || body.Cleared != 4 {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestCacheClear_L2FailureStillClearsL1(t *testing.T) {
	c := &fakeCache{err: &breaker.OpenError{Name: breaker.KVStore, RetryAfter: 30 * time.Second}}
	rec := serve(newTestHandler(nil, nil, c), httptest.NewRequest(http.MethodPost, "/api/v1/cache/clear", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}
	if c.l1Clears != 1 {
		t.Error("L1 was not cleared after an L2 failure")
	}
}

func TestCacheRoutes_RequireOperatorKey(t *testing.T) {
	h := newTestHandler(nil, nil, nil)
	router := NewRouter(h, RouterConfig{
		RateLimitDisabled: true,
		Security:          config.SecurityConfig{OperatorAPIKey: "s3cret"},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/clear", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	req.Header.Set(APIKeyHeader, "s3cret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHealthLive(t *testing.T) {
	h := NewHandler(Deps{DB: fakePinger{err: errors.New("down")}})
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name string
		db   Pinger
		kv   Pinger
		want int
		body ReadinessResponse
	}{
		{"all up", fakePinger{}, fakePinger{}, http.StatusOK,
			ReadinessResponse{Ready: true, Database: true, KVConfigured: true, KV: true}},
		{"no kv configured", fakePinger{}, nil, http.StatusOK,
			ReadinessResponse{Ready: true, Database: true, KV: true}},
		{"database down", fakePinger{err: errors.New("closed")}, fakePinger{}, http.StatusServiceUnavailable,
			ReadinessResponse{KVConfigured: true, KV: true}},
		{"kv down", fakePinger{}, fakePinger{err: errors.New("no servers")}, http.StatusServiceUnavailable,
			ReadinessResponse{Database: true, KVConfigured: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Deps{
				DB:       tt.db,
				KV:       tt.kv,
				Breakers: fakeBreakers{breaker.KVStore: {State: "open", ConsecutiveFailures: 5}},
			})
			rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}

			env := decodeEnvelope(t, rec)
			wantStatus := models.StatusSuccess
			if tt.want != http.StatusOK {
				wantStatus = "not_ready"
			}
			if env.Status != wantStatus {
				t.Errorf("envelope status = %q, want %q", env.Status, wantStatus)
			}

			var body ReadinessResponse
			decodeData(t, env, &body)
			if body.Breakers[breaker.KVStore].ConsecutiveFailures != 5 {
				t.Errorf("breakers = %+v", body.Breakers)
			}
			body.Breakers, body.UptimeSeconds = nil, 0
			if diff := cmp.Diff(tt.body, body); diff != "" {
				t.Errorf("readiness mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
