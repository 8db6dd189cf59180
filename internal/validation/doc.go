// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

// Package validation provides struct validation using go-playground/validator v10
// and the identifier checks shared by the data gateway and the API.
//
// # Overview
//
// The package provides:
//   - A thread-safe singleton validator with the custom tags ticker, usstate,
//     safesearch and ymd
//   - Human-readable messages keyed by JSON field name, with Message and
//     Details shaped for the API error body
//   - NormalizeTicker and NormalizeState for path and query parameters
//   - CheckSearchText, which rejects free text containing SQL statements or
//     comment sequences before it is bound into a pattern-matching predicate
//
// # Quick Start
//
//	type CircleRequest struct {
//	    Latitude  float64 `json:"latitude" validate:"latitude"`
//	    Longitude float64 `json:"longitude" validate:"longitude"`
//	    RadiusKm  float64 `json:"radius_km" validate:"gt=0,lte=1000"`
//	    Limit     int     `json:"limit" validate:"min=1,max=1000"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    respondAPIError(w, http.StatusBadRequest, &models.APIError{
//	        Code: validation.CodeValidation, Message: verr.Message(), Details: verr.Details(),
//	    })
//	    return
//	}
//
// # Search Denylist
//
// Search text is rejected when it contains, case-insensitively and as whole
// words: union, drop, delete, insert, update, exec, an xp_ procedure name, or
// select followed later by from. ";--" and ";/*" are rejected with any
// whitespace after the semicolon. Keywords are located with a single
// Aho-Corasick pass over the input.
//
// # Thread Safety
//
// The validator and the keyword automaton are built once and are safe for
// concurrent use.
package validation
