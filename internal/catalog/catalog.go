package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"shelfscan/internal/barcode"
)

const (
	DefaultTitle           = "Unknown Title"
	DefaultPublicationDate = "Unknown"
)

// BookRecord is the normalized catalog entry built from one lookup.
// Treat it as immutable once constructed.
type BookRecord struct {
	Identifier      barcode.Identifier `json:"isbn"`
	Title           string             `json:"title"`
	Authors         []string           `json:"authors"`
	PublicationDate string             `json:"publication_date"`
	Genre           string             `json:"genre"`
}

// NewBookRecord applies the field defaults. Genre is the comma-joined subject list.
func NewBookRecord(id barcode.Identifier, title string, authors []string, publicationDate string, subjects []string) BookRecord {
	if title == "" {
		title = DefaultTitle
	}
	if publicationDate == "" {
		publicationDate = DefaultPublicationDate
	}
	a := make([]string, len(authors))
	copy(a, authors)
	return BookRecord{
		Identifier:      id,
		Title:           title,
		Authors:         a,
		PublicationDate: publicationDate,
		Genre:           strings.Join(subjects, ", "),
	}
}

// Entry is a stored BookRecord.
type Entry struct {
	ID        string     `json:"id"`
	Record    BookRecord `json:"record"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DuplicatePolicy decides what Save does when the identifier is already stored.
type DuplicatePolicy string

const (
	// PolicyAppend stores every save as a new entry.
	PolicyAppend DuplicatePolicy = "append"
	// PolicyReject fails the save when an entry with the identifier exists.
	PolicyReject DuplicatePolicy = "reject"
	// PolicyMerge overwrites the oldest entry with the identifier in place.
	PolicyMerge DuplicatePolicy = "merge"
)

func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyAppend, nil
	case PolicyAppend, PolicyReject, PolicyMerge:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

var ErrDuplicate = errors.New("identifier already catalogued")

// PersistError is a failed write to the shared store.
type PersistError struct {
	Reason string
	Err    error
}

func (e *PersistError) Error() string {
	return "persist: " + e.Reason
}

func (e *PersistError) Unwrap() error { return e.Err }

func persistError(err error) *PersistError {
	return &PersistError{Reason: err.Error(), Err: err}
}
