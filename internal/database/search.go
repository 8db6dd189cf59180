// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package database

import (
	"context"
	"strings"

	"github.com/tomtom215/geomarket/internal/models"
	"github.com/tomtom215/geomarket/internal/validation"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchCompanies matches q case-insensitively against ticker and name.
// q is checked against the SQL denylist and its LIKE wildcards are escaped,
// so it always matches literally.
func (db *DB) SearchCompanies(ctx context.Context, q string, limit int) ([]models.Company, error) {
	q, err := validation.CheckSearchText(q)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	pattern := "%" + likeEscaper.Replace(q) + "%"
	query := `SELECT ` + companyColumns + ` FROM companies
		WHERE ticker ILIKE ? ESCAPE '\' OR name ILIKE ? ESCAPE '\'
		ORDER BY CASE WHEN upper(ticker) = upper(?) THEN 0 ELSE 1 END, ticker
		LIMIT ?`
	return db.queryCompanies(ctx, "search", query, pattern, pattern, q, limit)
}
