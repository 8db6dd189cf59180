// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// spatialBudgets are requests per client IP per window for each spatial
// route. Polygons are the most expensive.
var spatialBudgets = map[string]int{
	"/circle":         40,
	"/polygon":        20,
	"/state/{state}":  60,
	"/nearby-ticker":  50,
	"/regional-stats": 30,
}

// bulkBudget is the per-IP budget of the bulk endpoint, which fans out one
// history lookup per ticker.
const bulkBudget = 20

// limiter builds httprate middleware sharing one window and key function.
// Every call to budget gets its own counter.
type limiter struct {
	window   time.Duration
	disabled bool
	key      httprate.KeyFunc
}

func newLimiter(cfg RouterConfig) limiter {
	l := limiter{window: cfg.RateLimitWindow, disabled: cfg.RateLimitDisabled, key: httprate.KeyByIP}
	if l.window <= 0 {
		l.window = time.Minute
	}
	return l
}

func passthrough(next http.Handler) http.Handler { return next }

// budget allows n requests per client per window. n <= 0 disables it.
func (l limiter) budget(n int) func(http.Handler) http.Handler {
	if l.disabled || n <= 0 {
		return passthrough
	}
	msg := fmt.Sprintf("rate limit of %d requests per %s exceeded", n, l.window)
	return httprate.Limit(n, l.window,
		httprate.WithKeyFuncs(l.key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			setRetryAfter(w, l.window)
			respondError(w, http.StatusTooManyRequests, codeRateLimited, msg, nil)
		}),
	)
}

// corsHandler allows browser dashboards on origins to call the API.
// With no origins configured every cross-origin request is refused.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", APIKeyHeader, "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Correlation-ID", "Retry-After"},
		MaxAge:         int((24 * time.Hour).Seconds()),
	})
}
