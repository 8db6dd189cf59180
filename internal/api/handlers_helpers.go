// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geomarket/internal/breaker"
	"github.com/tomtom215/geomarket/internal/database"
	"github.com/tomtom215/geomarket/internal/geo"
	"github.com/tomtom215/geomarket/internal/logging"
	"github.com/tomtom215/geomarket/internal/middleware"
	"github.com/tomtom215/geomarket/internal/models"
	"github.com/tomtom215/geomarket/internal/spatial"
	"github.com/tomtom215/geomarket/internal/validation"
)

// maxBodyBytes caps JSON request bodies. A 100-vertex polygon is well
// under this.
const maxBodyBytes = 64 << 10

// Error codes used in APIError.Code.
const (
	codeValidation     = validation.CodeValidation
	codeNotFound       = "NOT_FOUND"
	codeUnavailable    = "SERVICE_UNAVAILABLE"
	codeDependency     = "DEPENDENCY_ERROR"
	codeAuthentication = "AUTHENTICATION_ERROR"
	codeAuthorization  = "AUTHORIZATION_ERROR"
	codeRateLimited    = "RATE_LIMIT_EXCEEDED"
	codeTimeout        = "TIMEOUT"
)

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&result, "\\x%02x", r)
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON writes response as JSON. The request ID set by
// middleware.RequestID is copied into the metadata.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	if response.Metadata.RequestID == "" {
		response.Metadata.RequestID = w.Header().Get(middleware.RequestIDHeader)
	}
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in a success envelope with the elapsed time.
func respondSuccess(w http.ResponseWriter, data interface{}, start time.Time) {
	respondJSON(w, http.StatusOK, models.Success(data, time.Since(start)))
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Warn().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}
	respondAPIError(w, status, &models.APIError{Code: code, Message: message})
}

func respondAPIError(w http.ResponseWriter, status int, apiErr *models.APIError) {
	respondJSON(w, status, models.Failure(apiErr))
}

// isValidationError reports whether err was caused by caller input.
func isValidationError(err error) bool {
	for _, target := range []error{
		spatial.ErrValidation,
		geo.ErrInvalidPoint,
		geo.ErrInvalidPolygon,
		validation.ErrInvalidTicker,
		validation.ErrInvalidState,
		validation.ErrUnsafeQuery,
		validation.ErrInvalidRange,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// respondServiceError maps a service error to its HTTP status.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var openErr *breaker.OpenError
	switch {
	case isValidationError(err):
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
	case errors.Is(err, spatial.ErrNotFound), errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, codeNotFound, err.Error(), nil)
	case errors.As(err, &openErr):
		setRetryAfter(w, openErr.RetryAfter)
		respondError(w, http.StatusServiceUnavailable, codeUnavailable,
			"a backing service is temporarily unavailable", err)
	case errors.Is(err, breaker.ErrCircuitOpen):
		respondError(w, http.StatusServiceUnavailable, codeUnavailable,
			"a backing service is temporarily unavailable", err)
	case errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil:
		respondError(w, http.StatusGatewayTimeout, codeTimeout, "backend call timed out", err)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", sanitizeLogValue(r.URL.Path)).Msg("Request failed")
		respondAPIError(w, http.StatusBadGateway, &models.APIError{
			Code:    codeDependency,
			Message: "a backing service failed",
		})
	}
}

// setRetryAfter writes Retry-After in whole seconds, at least 1.
func setRetryAfter(w http.ResponseWriter, d time.Duration) {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
}

// decodeJSON reads a bounded JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		msg := "request body must be valid JSON"
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			msg = fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			msg = "request body is empty"
		}
		respondError(w, http.StatusBadRequest, codeValidation, msg, nil)
		return false
	}
	return true
}

// validateRequest validates a struct using go-playground/validator and
// writes a 400 response when it fails.
func validateRequest(w http.ResponseWriter, v interface{}) bool {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return true
	}
	respondAPIError(w, http.StatusBadRequest, &models.APIError{
		Code:    validation.CodeValidation,
		Message: verr.Message(),
		Details: verr.Details(),
	})
	return false
}

// getIntParam extracts an integer query parameter. A malformed value is
// reported through ok=false.
func getIntParam(r *http.Request, key string, defaultValue int) (value int, ok bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// getBoolParam reads a boolean query parameter; anything unparsable is false.
func getBoolParam(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
