// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/pubmap/pkg/types"
)

// ErrSessionClosed is returned by Session methods after Commit or Rollback.
var ErrSessionClosed = errors.New("store: session closed")

// Session is a write session over one open transaction at a time.
// Checkpoint commits the accumulated writes and starts the next
// transaction, so a crash loses at most one interval of work. Reads
// through the session see its own uncommitted writes.
type Session struct {
	db *sql.DB
	tx *sql.Tx
}

// Begin opens a write session. Cancelling ctx rolls back the open interval.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Session{db: s.db, tx: tx}, nil
}

// InsertPaper inserts p unless a paper with the same ID exists. It reports
// whether a row was created.
func (w *Session) InsertPaper(ctx context.Context, p types.Paper) (bool, error) {
	if w.tx == nil {
		return false, ErrSessionClosed
	}
	res, err := w.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO papers (id, title, publication_date, doi, openalex_url)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Title, nullable(day(p.PublicationDate)), nullable(p.DOI), p.OpenAlexURL,
	)
	if err != nil {
		return false, fmt.Errorf("inserting paper %s: %w", p.ID, err)
	}
	return created(res)
}

// InsertInstitution inserts inst unless an institution with the same ID
// exists; the first resolved values win. It reports whether a row was created.
func (w *Session) InsertInstitution(ctx context.Context, inst types.Institution) (bool, error) {
	if w.tx == nil {
		return false, ErrSessionClosed
	}
	res, err := w.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO institutions (id, name, lat, lng, country_code)
		 VALUES (?, ?, ?, ?, ?)`,
		inst.ID, inst.Name, inst.Lat, inst.Lng, nullable(inst.CountryCode),
	)
	if err != nil {
		return false, fmt.Errorf("inserting institution %s: %w", inst.ID, err)
	}
	return created(res)
}

// LinkInstitution records the association l. Both rows must already exist
// in this session or a committed one.
func (w *Session) LinkInstitution(ctx context.Context, l types.PaperInstitution) (bool, error) {
	if w.tx == nil {
		return false, ErrSessionClosed
	}
	res, err := w.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO paper_institutions (paper_id, institution_id) VALUES (?, ?)`,
		l.PaperID, l.InstitutionID,
	)
	if err != nil {
		return false, fmt.Errorf("linking paper %s to institution %s: %w", l.PaperID, l.InstitutionID, err)
	}
	return created(res)
}

// Institution looks up a persisted institution through the open transaction.
func (w *Session) Institution(ctx context.Context, id string) (types.Institution, bool, error) {
	if w.tx == nil {
		return types.Institution{}, false, ErrSessionClosed
	}
	return queryInstitution(ctx, w.tx, id)
}

// Checkpoint commits the current transaction and opens the next one under
// ctx.
func (w *Session) Checkpoint(ctx context.Context) error {
	if err := w.Commit(); err != nil {
		return err
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	w.tx = tx
	return nil
}

// Commit commits the current transaction and closes the session.
func (w *Session) Commit() error {
	if w.tx == nil {
		return ErrSessionClosed
	}
	tx := w.tx
	w.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback discards uncommitted writes. It is a no-op on a closed session,
// so it can be deferred unconditionally.
func (w *Session) Rollback() error {
	if w.tx == nil {
		return nil
	}
	tx := w.tx
	w.tx = nil
	return tx.Rollback()
}

func created(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}
