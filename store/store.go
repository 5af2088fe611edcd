// Package store persists extraction results in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	invoicetable "github.com/Muhammad-Talha4k/invoice-table-extraction"
)

// ErrNotFound is returned for unknown extraction ids.
var ErrNotFound = errors.New("extraction not found")

const schema = `
CREATE TABLE IF NOT EXISTS extractions (
	id                TEXT PRIMARY KEY,
	source            TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	package_type      TEXT NOT NULL DEFAULT '',
	reference_number  TEXT NOT NULL DEFAULT '',
	two_row_header    INTEGER NOT NULL DEFAULT 0,
	table_start       INTEGER NOT NULL DEFAULT -1,
	table_rows        INTEGER NOT NULL DEFAULT 0,
	remainder_rows    INTEGER NOT NULL DEFAULT 0,
	table_json        TEXT NOT NULL,
	remainder_json    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS extractions_created_at ON extractions (created_at);
`

// Summary describes a stored extraction without its cells.
type Summary struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"created_at"`
	PackageType     string    `json:"package_type,omitempty"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	TableRows       int       `json:"table_rows"`
	RemainderRows   int       `json:"remainder_rows"`
}

// Record is a stored extraction with its decoded result.
type Record struct {
	Summary
	Result *invoicetable.Result
}

// Store is a SQLite-backed extraction archive.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and if needed creates) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// A single connection keeps writers serialised.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create schema")
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a result and returns its new id.
func (s *Store) Save(ctx context.Context, source string, res *invoicetable.Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}

	tableJSON, err := invoicetable.EncodeJSON(res.Table)
	if err != nil {
		return "", err
	}
	remainderJSON, err := invoicetable.EncodeJSON(invoicetable.TableRegion{
		Header: res.RemainderColumns,
		Rows:   res.Remainder,
	})
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO extractions (
			id, source, created_at, package_type, reference_number,
			two_row_header, table_start, table_rows, remainder_rows,
			table_json, remainder_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, source, s.now().UTC().Format(time.RFC3339Nano), res.PackageType, res.ReferenceNumber,
		boolToInt(res.TwoRowHeader), res.TableStart, res.Table.NumRows(), len(res.Remainder),
		string(tableJSON), string(remainderJSON),
	)
	if err != nil {
		return "", errors.Wrap(err, "insert extraction")
	}
	return id, nil
}

// Get loads a stored extraction.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var (
		rec           Record
		createdAt     string
		twoRowHeader  int
		tableStart    int
		tableJSON     string
		remainderJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, created_at, package_type, reference_number,
			two_row_header, table_start, table_rows, remainder_rows,
			table_json, remainder_json
		FROM extractions WHERE id = ?`, id).Scan(
		&rec.ID, &rec.Source, &createdAt, &rec.PackageType, &rec.ReferenceNumber,
		&twoRowHeader, &tableStart, &rec.TableRows, &rec.RemainderRows,
		&tableJSON, &remainderJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query extraction")
	}

	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, errors.Wrap(err, "parse created_at")
	}

	table, err := invoicetable.DecodeJSON([]byte(tableJSON))
	if err != nil {
		return nil, errors.Wrap(err, "decode stored table")
	}
	remainder, err := invoicetable.DecodeJSON([]byte(remainderJSON))
	if err != nil {
		return nil, errors.Wrap(err, "decode stored remainder")
	}

	rec.Result = &invoicetable.Result{
		Table:            table,
		Remainder:        remainder.Rows,
		RemainderColumns: remainder.Header,
		PackageType:      rec.PackageType,
		ReferenceNumber:  rec.ReferenceNumber,
		TwoRowHeader:     twoRowHeader != 0,
		TableStart:       tableStart,
	}
	return &rec, nil
}

// List returns the newest extractions first. A limit of zero or less
// returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, created_at, package_type, reference_number, table_rows, remainder_rows
		FROM extractions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list extractions")
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var createdAt string
		if err := rows.Scan(&sum.ID, &sum.Source, &createdAt, &sum.PackageType, &sum.ReferenceNumber, &sum.TableRows, &sum.RemainderRows); err != nil {
			return nil, errors.Wrap(err, "scan extraction")
		}
		if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, errors.Wrap(err, "parse created_at")
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate extractions")
	}
	return out, nil
}

// Delete removes a stored extraction.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM extractions WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete extraction")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete extraction")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
