package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"shelfscan/internal/barcode"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS catalog_entries (
	id               TEXT PRIMARY KEY,
	isbn             TEXT NOT NULL,
	title            TEXT NOT NULL,
	authors          TEXT NOT NULL DEFAULT '[]',
	publication_date TEXT NOT NULL,
	genre            TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_catalog_entries_isbn ON catalog_entries (isbn);
CREATE INDEX IF NOT EXISTS idx_catalog_entries_created_at ON catalog_entries (created_at);
`

// sqliteTimeFormat is fixed width so timestamps sort as text.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepo stores the catalog in a local SQLite file for single-station use.
type SQLiteRepo struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteRepo{db: db, path: path}, nil
}

func (r *SQLiteRepo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Ping checks the database connection.
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepo) Insert(ctx context.Context, rec BookRecord) (Entry, error) {
	authors, err := json.Marshal(authorsOrEmpty(rec.Authors))
	if err != nil {
		return Entry{}, err
	}
	now := time.Now().UTC()
	e := Entry{ID: uuid.NewString(), Record: rec, CreatedAt: now, UpdatedAt: now}
	ts := now.Format(sqliteTimeFormat)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO catalog_entries (id, isbn, title, authors, publication_date, genre, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, rec.Identifier.String(), rec.Title, string(authors), rec.PublicationDate, rec.Genre, ts, ts)
	if err != nil {
		return Entry{}, fmt.Errorf("insert catalog entry: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepo) ReplaceByISBN(ctx context.Context, rec BookRecord) (Entry, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, false, err
	}
	defer tx.Rollback()

	var (
		id        string
		createdAt string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM catalog_entries WHERE isbn = ? ORDER BY created_at ASC, rowid ASC LIMIT 1`,
		rec.Identifier.String()).Scan(&id, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	authors, err := json.Marshal(authorsOrEmpty(rec.Authors))
	if err != nil {
		return Entry{}, false, err
	}
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE catalog_entries SET title = ?, authors = ?, publication_date = ?, genre = ?, updated_at = ?
		WHERE id = ?`,
		rec.Title, string(authors), rec.PublicationDate, rec.Genre, now.Format(sqliteTimeFormat), id)
	if err != nil {
		return Entry{}, false, fmt.Errorf("update catalog entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, false, err
	}

	created, _ := time.Parse(sqliteTimeFormat, createdAt)
	return Entry{ID: id, Record: rec, CreatedAt: created, UpdatedAt: now}, true, nil
}

func (r *SQLiteRepo) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM catalog_entries WHERE isbn = ?`, isbn).Scan(&n)
	return n > 0, err
}

func (r *SQLiteRepo) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, isbn, title, authors, publication_date, genre, created_at, updated_at
		FROM catalog_entries
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                    Entry
			isbn, authors        string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&e.ID, &isbn, &e.Record.Title, &authors, &e.Record.PublicationDate,
			&e.Record.Genre, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		e.Record.Identifier = barcode.Identifier(isbn)
		if err := json.Unmarshal([]byte(authors), &e.Record.Authors); err != nil {
			return nil, fmt.Errorf("decode authors for %s: %w", e.ID, err)
		}
		e.CreatedAt, _ = time.Parse(sqliteTimeFormat, createdAt)
		e.UpdatedAt, _ = time.Parse(sqliteTimeFormat, updatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
