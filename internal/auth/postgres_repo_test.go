package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfscan/internal/testutil"
)

func TestPostgresRepo_Accounts(t *testing.T) {
	repo := NewPostgresRepo(testutil.PostgresPool(t, "auth_test"), time.Second)
	ctx := context.Background()

	created, err := repo.Create(ctx, "ada@example.com", "hash")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = repo.Create(ctx, "ada@example.com", "other")
	assert.ErrorIs(t, err, ErrAccountExists)

	got, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepo_RevokedTokens(t *testing.T) {
	repo := NewPostgresRepo(testutil.PostgresPool(t, "auth_test"), time.Second)
	ctx := context.Background()

	acct, err := repo.Create(ctx, "ada@example.com", "hash")
	require.NoError(t, err)

	require.NoError(t, repo.RevokeToken(ctx, "jti-live", acct.ID, time.Now().Add(time.Hour)))
	require.NoError(t, repo.RevokeToken(ctx, "jti-live", acct.ID, time.Now().Add(time.Hour)))
	require.NoError(t, repo.RevokeToken(ctx, "jti-old", acct.ID, time.Now().Add(-time.Hour)))

	revoked, err := repo.IsRevoked(ctx, "jti-live")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = repo.IsRevoked(ctx, "jti-old")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, repo.CleanupRevoked(ctx))
	revoked, err = repo.IsRevoked(ctx, "jti-live")
	require.NoError(t, err)
	assert.True(t, revoked)
}
