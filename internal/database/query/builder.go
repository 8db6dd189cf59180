// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package query

import (
	"strings"
	"time"
)

// Select builds one parameterized SELECT statement. Table, column and
// ordering strings are written verbatim and must be literals; every value
// is bound as an argument.
type Select struct {
	columns string
	table   string
	conds   []string
	args    []any
	orderBy string
	limit   int
}

// From starts a SELECT of columns from table.
func From(table, columns string) *Select {
	return &Select{table: table, columns: columns}
}

// Where adds a raw condition and its arguments.
func (s *Select) Where(cond string, args ...any) *Select {
	s.conds = append(s.conds, cond)
	s.args = append(s.args, args...)
	return s
}

func (s *Select) Eq(column string, value any) *Select {
	return s.Where(column+" = ?", value)
}

// TimeRange bounds column inclusively on both sides, in UTC. A zero time
// leaves that side open.
func (s *Select) TimeRange(column string, start, end time.Time) *Select {
	if !start.IsZero() {
		s.Where(column+" >= ?", start.UTC())
	}
	if !end.IsZero() {
		s.Where(column+" <= ?", end.UTC())
	}
	return s
}

// In adds "column IN (...)". An empty list adds nothing.
func (s *Select) In(column string, values ...string) *Select {
	if len(values) == 0 {
		return s
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return s.Where(column+" IN (?"+strings.Repeat(", ?", len(values)-1)+")", args...)
}

func (s *Select) NotNull(columns ...string) *Select {
	for _, c := range columns {
		s.Where(c + " IS NOT NULL")
	}
	return s
}

func (s *Select) OrderBy(expr string) *Select {
	s.orderBy = expr
	return s
}

// Limit binds a LIMIT; n <= 0 means none.
func (s *Select) Limit(n int) *Select {
	s.limit = n
	return s
}

// Build returns the statement and its arguments in placeholder order.
func (s *Select) Build() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(s.columns)
	b.WriteString(" FROM ")
	b.WriteString(s.table)

	args := append([]any(nil), s.args...)
	if len(s.conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(s.conds, " AND "))
	}
	if s.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(s.orderBy)
	}
	if s.limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, s.limit)
	}
	return b.String(), args
}
