package auth

//go:generate mockgen -source=postgres_repo.go -destination=mock_repository.go -package=auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, email, passwordHash string) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	RevokeToken(ctx context.Context, jti, userID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	CleanupRevoked(ctx context.Context) error
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

func (r *PostgresRepo) Create(ctx context.Context, email, passwordHash string) (Account, error) {
	const query = `
	INSERT INTO accounts (email, password_hash)
	VALUES ($1, $2)
	RETURNING id, created_at
	`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	a := Account{Email: email, PasswordHash: passwordHash}
	err := r.db.QueryRow(ctx, query, email, passwordHash).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrAccountExists
		}
		return Account{}, err
	}
	return a, nil
}

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (Account, error) {
	const query = `
	SELECT id, email, password_hash, created_at
	FROM accounts
	WHERE email = $1
	LIMIT 1
	`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var a Account
	err := r.db.QueryRow(ctx, query, email).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *PostgresRepo) RevokeToken(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	const query = `
	INSERT INTO revoked_tokens (jti, account_id, expires_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (jti) DO NOTHING
	`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(ctx, query, jti, userID, expiresAt)
	return err
}

func (r *PostgresRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	const query = `
	SELECT EXISTS(
		SELECT 1 FROM revoked_tokens
		WHERE jti = $1 AND expires_at > now()
	)
	`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var exists bool
	err := r.db.QueryRow(ctx, query, jti).Scan(&exists)
	return exists, err
}

func (r *PostgresRepo) CleanupRevoked(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < now()`)
	return err
}
