package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfscan/internal/logger"
)

func TestNewBookRecord_Defaults(t *testing.T) {
	rec := NewBookRecord("9780140449136", "", nil, "", nil)
	assert.Equal(t, DefaultTitle, rec.Title)
	assert.Equal(t, DefaultPublicationDate, rec.PublicationDate)
	assert.Equal(t, []string{}, rec.Authors)
	assert.Equal(t, "", rec.Genre)

	rec = NewBookRecord("9780140449136", "The Odyssey", []string{"Homer"}, "2003", []string{"Epic poetry", "Classics"})
	assert.Equal(t, "Epic poetry, Classics", rec.Genre)
}

func TestParseDuplicatePolicy(t *testing.T) {
	for in, want := range map[string]DuplicatePolicy{"": PolicyAppend, "append": PolicyAppend, " Reject ": PolicyReject, "merge": PolicyMerge} {
		got, err := ParseDuplicatePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDuplicatePolicy("ignore")
	assert.Error(t, err)
}

func TestWriter_Save(t *testing.T) {
	ctx := context.Background()
	rec := NewBookRecord("9780140449136", "The Odyssey", []string{"Homer"}, "", nil)

	t.Run("append inserts without checking", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := NewMockRepository(ctrl)
		repo.EXPECT().Insert(gomock.Any(), rec).Return(Entry{ID: "e-1", Record: rec}, nil)

		entry, err := NewWriter(repo, PolicyAppend, logger.Nop()).Save(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, "e-1", entry.ID)
	})

	t.Run("store error becomes PersistError", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := NewMockRepository(ctrl)
		cause := errors.New("connection refused")
		repo.EXPECT().Insert(gomock.Any(), rec).Return(Entry{}, cause)

		_, err := NewWriter(repo, PolicyAppend, logger.Nop()).Save(ctx, rec)
		var pe *PersistError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "connection refused", pe.Reason)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("reject duplicate", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := NewMockRepository(ctrl)
		repo.EXPECT().ExistsByISBN(gomock.Any(), "9780140449136").Return(true, nil)

		_, err := NewWriter(repo, PolicyReject, logger.Nop()).Save(ctx, rec)
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("reject inserts new identifier", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := NewMockRepository(ctrl)
		gomock.InOrder(
			repo.EXPECT().ExistsByISBN(gomock.Any(), "9780140449136").Return(false, nil),
			repo.EXPECT().Insert(gomock.Any(), rec).Return(Entry{ID: "e-2"}, nil),
		)

		_, err := NewWriter(repo, PolicyReject, logger.Nop()).Save(ctx, rec)
		require.NoError(t, err)
	})

	t.Run("merge replaces existing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := NewMockRepository(ctrl)
		repo.EXPECT().ReplaceByISBN(gomock.Any(), rec).Return(Entry{ID: "old"}, true, nil)

		entry, err := NewWriter(repo, PolicyMerge, logger.Nop()).Save(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, "old", entry.ID)
	})

	t.Run("merge falls back to insert", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := NewMockRepository(ctrl)
		repo.EXPECT().ReplaceByISBN(gomock.Any(), rec).Return(Entry{}, false, nil)
		repo.EXPECT().Insert(gomock.Any(), rec).Return(Entry{ID: "new"}, nil)

		entry, err := NewWriter(repo, PolicyMerge, logger.Nop()).Save(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, "new", entry.ID)
	})
}
