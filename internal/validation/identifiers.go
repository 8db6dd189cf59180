// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Identifier and free-text validation errors. These are ValidationFailures:
// they are raised before any backend is contacted.
var (
	ErrInvalidTicker = errors.New("invalid ticker")
	ErrInvalidState  = errors.New("invalid state code")
	ErrUnsafeQuery   = errors.New("search query contains invalid characters or SQL patterns")
	ErrInvalidRange  = errors.New("value out of range")
)

// MaxSearchLength bounds free-text search input.
const MaxSearchLength = 50

var (
	tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)
	statePattern  = regexp.MustCompile(`^[A-Z]{2}$`)
)

// IsTicker reports whether s is already a well-formed ticker.
func IsTicker(s string) bool {
	return tickerPattern.MatchString(s)
}

// NormalizeTicker trims and upper-cases s and checks it is 1-10
// alphanumeric characters.
func NormalizeTicker(s string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	if !tickerPattern.MatchString(t) {
		return "", fmt.Errorf("%w: %q must be 1-10 alphanumeric characters", ErrInvalidTicker, s)
	}
	return t, nil
}

// IsStateCode reports whether s is a two-letter upper-case code.
func IsStateCode(s string) bool {
	return statePattern.MatchString(s)
}

// NormalizeState trims and upper-cases a two-letter state code.
func NormalizeState(s string) (string, error) {
	st := strings.ToUpper(strings.TrimSpace(s))
	if !statePattern.MatchString(st) {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
	return st, nil
}

// sqlKeywords are rejected when they appear as whole words.
var sqlKeywords = newKeywordMatcher(
	"union", "select", "from", "drop", "delete", "insert", "update", "exec", "xp_",
)

// CheckSearchText trims q and rejects it when it is empty, longer than
// MaxSearchLength, or contains SQL statements or comment sequences.
// The checked text is returned for use as a bound parameter.
func CheckSearchText(q string) (string, error) {
	q = strings.TrimSpace(q)
	n := utf8.RuneCountInString(q)
	if n == 0 {
		return "", fmt.Errorf("%w: query must not be empty", ErrUnsafeQuery)
	}
	if n > MaxSearchLength {
		return "", fmt.Errorf("%w: query must be %d characters or less", ErrUnsafeQuery, MaxSearchLength)
	}

	lower := strings.ToLower(q)
	if hasCommentSequence(lower) || hasSQLStatement(lower) {
		return "", ErrUnsafeQuery
	}
	return q, nil
}

// hasCommentSequence detects ";--" and ";/*" with optional whitespace
// after the semicolon.
func hasCommentSequence(s string) bool {
	squeezed := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Contains(squeezed, ";--") || strings.Contains(squeezed, ";/*")
}

func hasSQLStatement(s string) bool {
	selectAt := -1
	for _, m := range sqlKeywords.search(s) {
		if !wordStart(s, m.Start) {
			continue
		}
		if m.Keyword == "xp_" {
			// xp_ must be followed by a word character.
			if m.End < len(s) && isWordByte(s[m.End]) {
				return true
			}
			continue
		}
		if !wordEnd(s, m.End) {
			continue
		}

		switch m.Keyword {
		case "select":
			if selectAt < 0 {
				selectAt = m.Start
			}
		case "from":
			if selectAt >= 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}

func wordStart(s string, i int) bool {
	return i == 0 || !isWordByte(s[i-1])
}

func wordEnd(s string, i int) bool {
	return i >= len(s) || !isWordByte(s[i])
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
