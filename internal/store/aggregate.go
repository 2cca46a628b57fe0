// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pdiddy/pubmap/pkg/types"
)

// Counts holds table cardinalities.
type Counts struct {
	Papers       int `json:"papers" yaml:"papers"`
	Institutions int `json:"institutions" yaml:"institutions"`
	Links        int `json:"links" yaml:"links"`
}

// Counts returns the number of rows in each table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM papers),
		(SELECT COUNT(*) FROM institutions),
		(SELECT COUNT(*) FROM paper_institutions)`,
	).Scan(&c.Papers, &c.Institutions, &c.Links)
	if err != nil {
		return Counts{}, fmt.Errorf("counting rows: %w", err)
	}
	return c, nil
}

// DateRange returns the earliest and latest publication dates, day
// truncated. Both are "" when no paper has a date.
func (s *Store) DateRange(ctx context.Context) (types.DateRange, error) {
	var from, to sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(publication_date), MAX(publication_date) FROM papers WHERE publication_date <> ''`,
	).Scan(&from, &to)
	if err != nil {
		return types.DateRange{}, fmt.Errorf("querying date range: %w", err)
	}
	return types.DateRange{From: day(from.String), To: day(to.String)}, nil
}

// InstitutionSummaries returns every institution with at least one linked
// paper, ordered by paper count descending and then by ID.
func (s *Store) InstitutionSummaries(ctx context.Context) ([]types.InstitutionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.name, i.lat, i.lng, i.country_code, COUNT(pi.paper_id) AS paper_count
		FROM institutions i
		JOIN paper_institutions pi ON pi.institution_id = i.id
		GROUP BY i.id
		ORDER BY paper_count DESC, i.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying institution summaries: %w", err)
	}
	defer rows.Close()

	out := []types.InstitutionSummary{}
	for rows.Next() {
		var (
			r       types.InstitutionSummary
			country sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Lat, &r.Lng, &country, &r.PaperCount); err != nil {
			return nil, fmt.Errorf("scanning institution summary: %w", err)
		}
		r.CountryCode = country.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountryCounts returns the number of distinct papers per country code,
// skipping institutions without one. A paper with institutions in two
// countries counts once for each.
func (s *Store) CountryCounts(ctx context.Context) ([]types.CountryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.country_code, COUNT(DISTINCT pi.paper_id) AS paper_count
		FROM paper_institutions pi
		JOIN institutions i ON pi.institution_id = i.id
		WHERE i.country_code IS NOT NULL AND i.country_code <> ''
		GROUP BY i.country_code
		ORDER BY paper_count DESC, i.country_code ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying country counts: %w", err)
	}
	defer rows.Close()

	out := []types.CountryCount{}
	for rows.Next() {
		var c types.CountryCount
		if err := rows.Scan(&c.CountryCode, &c.PaperCount); err != nil {
			return nil, fmt.Errorf("scanning country count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
