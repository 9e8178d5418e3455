package catalog

import (
	"context"

	"shelfscan/internal/logger"
)

// Writer persists looked-up records into the shared store.
type Writer struct {
	repo   Repository
	policy DuplicatePolicy
	log    *logger.Logger
}

func NewWriter(repo Repository, policy DuplicatePolicy, log *logger.Logger) *Writer {
	if policy == "" {
		policy = PolicyAppend
	}
	if log == nil {
		log = logger.Get()
	}
	return &Writer{repo: repo, policy: policy, log: log.WithComponent("catalog")}
}

func (w *Writer) Policy() DuplicatePolicy { return w.policy }

// Save writes rec according to the writer's duplicate policy. Every failure is
// a *PersistError.
func (w *Writer) Save(ctx context.Context, rec BookRecord) (Entry, error) {
	isbn := rec.Identifier.String()

	switch w.policy {
	case PolicyReject:
		exists, err := w.repo.ExistsByISBN(ctx, isbn)
		if err != nil {
			return Entry{}, persistError(err)
		}
		if exists {
			return Entry{}, &PersistError{Reason: "duplicate identifier " + isbn, Err: ErrDuplicate}
		}
	case PolicyMerge:
		entry, found, err := w.repo.ReplaceByISBN(ctx, rec)
		if err != nil {
			return Entry{}, persistError(err)
		}
		if found {
			w.log.Info("catalog entry merged", map[string]interface{}{"isbn": isbn, "entry_id": entry.ID})
			return entry, nil
		}
	}

	entry, err := w.repo.Insert(ctx, rec)
	if err != nil {
		return Entry{}, persistError(err)
	}
	w.log.Info("catalog entry added", map[string]interface{}{"isbn": isbn, "entry_id": entry.ID})
	return entry, nil
}

// Recent lists the newest entries first.
func (w *Writer) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return w.repo.ListRecent(ctx, limit)
}
