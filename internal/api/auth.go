// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package api

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/geomarket/internal/config"
	"github.com/tomtom215/geomarket/internal/logging"
)

// APIKeyHeader carries the operator credential.
const APIKeyHeader = "X-API-Key"

// OperatorAuth guards operator endpoints with the configured API key.
// A missing key is 401 and a wrong key is 403. When neither a key nor a
// bcrypt hash is configured the server runs in development mode and every
// request passes.
//
// The hash takes precedence over the plain key when both are set.
func OperatorAuth(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	if cfg.DevelopmentMode() {
		logging.Warn().Msg("No operator API key configured, operator endpoints are open (development mode)")
		return func(next http.Handler) http.Handler { return next }
	}

	hash := []byte(cfg.OperatorAPIKeyHash)
	plain := []byte(cfg.OperatorAPIKey)

	verify := func(key string) bool {
		if len(hash) > 0 {
			// bcrypt.CompareHashAndPassword is timing-safe
			return bcrypt.CompareHashAndPassword(hash, []byte(key)) == nil
		}
		return subtle.ConstantTimeCompare([]byte(key), plain) == 1
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				respondError(w, http.StatusUnauthorized, codeAuthentication, "operator API key required", nil)
				return
			}
			if !verify(key) {
				logging.Ctx(r.Context()).Warn().
					Str("path", sanitizeLogValue(r.URL.Path)).
					Str("remote_addr", sanitizeLogValue(r.RemoteAddr)).
					Msg("Rejected operator API key")
				respondError(w, http.StatusForbidden, codeAuthorization, "invalid operator API key", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
