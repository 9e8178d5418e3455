package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfscan/internal/logger"
	"shelfscan/internal/testutil"
)

func odyssey() BookRecord {
	return NewBookRecord("9780140449136", "The Odyssey", []string{"Homer"}, "2003", []string{"Epic poetry"})
}

func TestPostgresRepo_InsertAndList(t *testing.T) {
	repo := NewPostgresRepo(testutil.PostgresPool(t, "catalog_test"), time.Second)
	ctx := context.Background()

	exists, err := repo.ExistsByISBN(ctx, "9780140449136")
	require.NoError(t, err)
	assert.False(t, exists)

	first, err := repo.Insert(ctx, odyssey())
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	second, err := repo.Insert(ctx, NewBookRecord("96385074", "Short Code", nil, "", nil))
	require.NoError(t, err)

	exists, err = repo.ExistsByISBN(ctx, "9780140449136")
	require.NoError(t, err)
	assert.True(t, exists)

	entries, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Empty(t, entries[0].Record.Authors)
	assert.Equal(t, odyssey(), entries[1].Record)
}

func TestPostgresRepo_ReplaceByISBN(t *testing.T) {
	repo := NewPostgresRepo(testutil.PostgresPool(t, "catalog_test"), time.Second)
	ctx := context.Background()

	_, found, err := repo.ReplaceByISBN(ctx, odyssey())
	require.NoError(t, err)
	assert.False(t, found)

	orig, err := repo.Insert(ctx, odyssey())
	require.NoError(t, err)

	updated := odyssey()
	updated.Title = "The Odyssey (Fagles)"
	e, found, err := repo.ReplaceByISBN(ctx, updated)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, orig.ID, e.ID)
	assert.False(t, e.UpdatedAt.Before(orig.UpdatedAt))
}

func TestPostgresRepo_WriterRejectPolicy(t *testing.T) {
	repo := NewPostgresRepo(testutil.PostgresPool(t, "catalog_test"), time.Second)
	w := NewWriter(repo, PolicyReject, logger.Nop())
	ctx := context.Background()

	_, err := w.Save(ctx, odyssey())
	require.NoError(t, err)
	_, err = w.Save(ctx, odyssey())
	var pe *PersistError
	require.ErrorAs(t, err, &pe)
}
