package profile

//go:generate mockgen -source=postgres_repo.go -destination=mock_repository.go -package=profile

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Get(ctx context.Context, userID string) (Profile, error)
	Upsert(ctx context.Context, p Profile) (Profile, error)
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

func (r *PostgresRepo) Get(ctx context.Context, userID string) (Profile, error) {
	const query = `
	SELECT account_id, role, name, email, COALESCE(to_char(dob, 'YYYY-MM-DD'), ''), updated_at
	FROM profiles
	WHERE account_id = $1
	`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var (
		p    Profile
		role string
	)
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.UserID, &role, &p.Display.Name, &p.Display.Email, &p.Display.DateOfBirth, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	p.Role = Role(role)
	return p, nil
}

func (r *PostgresRepo) Upsert(ctx context.Context, p Profile) (Profile, error) {
	const query = `
	INSERT INTO profiles (account_id, role, name, email, dob)
	VALUES ($1, $2, $3, $4, NULLIF($5, '')::date)
	ON CONFLICT (account_id) DO UPDATE
	SET role = EXCLUDED.role,
	    name = EXCLUDED.name,
	    email = EXCLUDED.email,
	    dob = EXCLUDED.dob,
	    updated_at = now()
	RETURNING updated_at
	`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := r.db.QueryRow(ctx, query, p.UserID, string(p.Role), p.Display.Name, p.Display.Email, p.Display.DateOfBirth).
		Scan(&p.UpdatedAt)
	return p, err
}
