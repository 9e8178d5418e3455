package catalog

//go:generate mockgen -source=postgres_repo.go -destination=mock_repository.go -package=catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shelfscan/internal/barcode"
)

type Repository interface {
	Insert(ctx context.Context, rec BookRecord) (Entry, error)
	// ReplaceByISBN overwrites the oldest entry for the record's identifier.
	// found is false when no entry exists.
	ReplaceByISBN(ctx context.Context, rec BookRecord) (entry Entry, found bool, err error)
	ExistsByISBN(ctx context.Context, isbn string) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresRepo) Insert(ctx context.Context, rec BookRecord) (Entry, error) {
	const query = `
		INSERT INTO catalog_entries (isbn, title, authors, publication_date, genre)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	e := Entry{Record: rec}
	err := r.db.QueryRow(ctx, query, rec.Identifier.String(), rec.Title, authorsOrEmpty(rec.Authors), rec.PublicationDate, rec.Genre).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *PostgresRepo) ReplaceByISBN(ctx context.Context, rec BookRecord) (Entry, bool, error) {
	const query = `
		UPDATE catalog_entries SET
			title = $2,
			authors = $3,
			publication_date = $4,
			genre = $5,
			updated_at = now()
		WHERE id = (
			SELECT id FROM catalog_entries WHERE isbn = $1 ORDER BY created_at ASC LIMIT 1
		)
		RETURNING id, created_at, updated_at`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	e := Entry{Record: rec}
	err := r.db.QueryRow(ctx, query, rec.Identifier.String(), rec.Title, authorsOrEmpty(rec.Authors), rec.PublicationDate, rec.Genre).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

func (r *PostgresRepo) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM catalog_entries WHERE isbn = $1)", isbn).Scan(&exists)
	return exists, err
}

func (r *PostgresRepo) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	const query = `
		SELECT id, isbn, title, authors, publication_date, genre, created_at, updated_at
		FROM catalog_entries
		ORDER BY created_at DESC
		LIMIT $1`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var isbn string
		if err := rows.Scan(&e.ID, &isbn, &e.Record.Title, &e.Record.Authors,
			&e.Record.PublicationDate, &e.Record.Genre, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Record.Identifier = barcode.Identifier(isbn)
		out = append(out, e)
	}
	return out, rows.Err()
}

func authorsOrEmpty(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}
