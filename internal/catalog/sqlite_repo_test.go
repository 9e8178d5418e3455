package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLiteRepo {
	t.Helper()
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteRepo_InsertAndList(t *testing.T) {
	ctx := context.Background()
	repo := openTestSQLite(t)
	require.NoError(t, repo.Ping(ctx))

	odyssey := NewBookRecord("9780140449136", "The Odyssey", []string{"Homer"}, "", nil)
	iliad := NewBookRecord("9780140275360", "The Iliad", []string{"Homer", "Robert Fagles"}, "1998", []string{"Epic poetry"})

	first, err := repo.Insert(ctx, odyssey)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = repo.Insert(ctx, iliad)
	require.NoError(t, err)
	// append mode keeps duplicates as separate entries
	_, err = repo.Insert(ctx, odyssey)
	require.NoError(t, err)

	entries, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, odyssey, entries[0].Record)
	assert.Equal(t, iliad, entries[1].Record)
	assert.Equal(t, first.ID, entries[2].ID)

	exists, err := repo.ExistsByISBN(ctx, "9780140275360")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.ExistsByISBN(ctx, "0000000000000")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLiteRepo_ReplaceByISBN(t *testing.T) {
	ctx := context.Background()
	repo := openTestSQLite(t)

	_, found, err := repo.ReplaceByISBN(ctx, NewBookRecord("9780140449136", "The Odyssey", nil, "", nil))
	require.NoError(t, err)
	assert.False(t, found)

	orig, err := repo.Insert(ctx, NewBookRecord("9780140449136", "", nil, "", nil))
	require.NoError(t, err)

	updated := NewBookRecord("9780140449136", "The Odyssey", []string{"Homer"}, "2003", nil)
	entry, found, err := repo.ReplaceByISBN(ctx, updated)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, orig.ID, entry.ID)
	assert.Equal(t, updated, entry.Record)

	entries, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "The Odyssey", entries[0].Record.Title)
}

func TestSQLiteRepo_WithWriter(t *testing.T) {
	ctx := context.Background()
	w := NewWriter(openTestSQLite(t), PolicyReject, nil)
	rec := NewBookRecord("96385074", "Pamphlet", nil, "", nil)

	_, err := w.Save(ctx, rec)
	require.NoError(t, err)
	_, err = w.Save(ctx, rec)
	assert.ErrorIs(t, err, ErrDuplicate)
}
