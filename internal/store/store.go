// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists papers, institutions, and their associations in a
// normalized SQLite database. Every write is insert-if-absent: replaying a
// run never overwrites a row and never fails on a duplicate key.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pubmap/pkg/types"
)

// DefaultPath is where the database lives unless configured otherwise.
const DefaultPath = "data/publications.db"

// Store manages the publications SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and creates the schema if it
// does not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			publication_date TEXT,
			doi TEXT,
			openalex_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS institutions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			lat REAL NOT NULL,
			lng REAL NOT NULL,
			country_code TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS paper_institutions (
			paper_id TEXT NOT NULL REFERENCES papers(id),
			institution_id TEXT NOT NULL REFERENCES institutions(id),
			PRIMARY KEY (paper_id, institution_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_date ON papers(publication_date)`,
		`CREATE INDEX IF NOT EXISTS idx_pi_institution ON paper_institutions(institution_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// MaxPublicationDate returns the latest publication date in the store,
// truncated to the day, or "" when no paper has a date.
func (s *Store) MaxPublicationDate(ctx context.Context) (string, error) {
	var d sql.NullString
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(publication_date) FROM papers WHERE publication_date <> ''`,
	).Scan(&d); err != nil {
		return "", fmt.Errorf("querying latest publication date: %w", err)
	}
	return day(d.String), nil
}

// Institution returns a persisted institution by stripped ID.
func (s *Store) Institution(ctx context.Context, id string) (types.Institution, bool, error) {
	return queryInstitution(ctx, s.db, id)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryInstitution(ctx context.Context, q querier, id string) (types.Institution, bool, error) {
	var (
		inst    types.Institution
		country sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, name, lat, lng, country_code FROM institutions WHERE id = ?`, id,
	).Scan(&inst.ID, &inst.Name, &inst.Lat, &inst.Lng, &country)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Institution{}, false, nil
	}
	if err != nil {
		return types.Institution{}, false, fmt.Errorf("querying institution %s: %w", id, err)
	}
	inst.CountryCode = country.String
	return inst, true, nil
}

func day(date string) string {
	if len(date) > 10 {
		return date[:10]
	}
	return date
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
