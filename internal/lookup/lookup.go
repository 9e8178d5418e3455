// Package lookup resolves a scanned identifier into a catalog record using the
// Open Library books API.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shelfscan/internal/barcode"
	"shelfscan/internal/catalog"
	"shelfscan/internal/logger"
)

type Kind string

const (
	Unavailable       Kind = "LookupUnavailable"
	NotFound          Kind = "NotFound"
	MalformedResponse Kind = "MalformedResponse"
)

// Error is a failed lookup. Kind tells the caller how to phrase it.
type Error struct {
	Kind       Kind
	Identifier barcode.Identifier
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lookup %s: %s: %v", e.Identifier, e.Kind, e.Err)
	}
	return fmt.Sprintf("lookup %s: %s", e.Identifier, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the lookup kind carried by err, or "" if err is not a lookup error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// Fetcher performs the single HTTP request for an ISBN.
type Fetcher interface {
	FetchBook(ctx context.Context, isbn string) ([]byte, error)
}

type Client struct {
	fetcher Fetcher
	log     *logger.Logger
}

func NewClient(fetcher Fetcher, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Get()
	}
	return &Client{fetcher: fetcher, log: log.WithComponent("lookup")}
}

// Lookup issues exactly one request for id. It never retries.
func (c *Client) Lookup(ctx context.Context, id barcode.Identifier) (catalog.BookRecord, error) {
	body, err := c.fetcher.FetchBook(ctx, id.String())
	if err != nil {
		c.log.Warn("open library unavailable", map[string]interface{}{"isbn": id.String(), "error": err.Error()})
		return catalog.BookRecord{}, &Error{Kind: Unavailable, Identifier: id, Err: err}
	}

	rec, err := Parse(id, body)
	if err != nil {
		c.log.Debug("lookup failed", map[string]interface{}{"isbn": id.String(), "kind": string(KindOf(err))})
		return catalog.BookRecord{}, err
	}
	return rec, nil
}

// Parse turns an api/books jscmd=data document into a BookRecord.
func Parse(id barcode.Identifier, body []byte) (catalog.BookRecord, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return catalog.BookRecord{}, &Error{Kind: MalformedResponse, Identifier: id, Err: err}
	}
	if top == nil {
		// a literal null decodes without error
		return catalog.BookRecord{}, &Error{Kind: MalformedResponse, Identifier: id, Err: errors.New("top-level value is null")}
	}

	raw, ok := top["ISBN:"+id.String()]
	if !ok || string(raw) == "null" {
		return catalog.BookRecord{}, &Error{Kind: NotFound, Identifier: id}
	}

	var entry map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entry); err != nil || entry == nil {
		if err == nil {
			err = errors.New("entry is not an object")
		}
		return catalog.BookRecord{}, &Error{Kind: MalformedResponse, Identifier: id, Err: err}
	}

	return catalog.NewBookRecord(
		id,
		stringField(entry["title"]),
		names(entry["authors"]),
		stringField(entry["publish_date"]),
		names(entry["subjects"]),
	), nil
}

// stringField yields "" when the field is missing or not a string.
func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// names keeps the elements of a list that carry a string name.
func names(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var obj map[string]json.RawMessage
		if json.Unmarshal(item, &obj) != nil {
			continue
		}
		if name := stringField(obj["name"]); name != "" {
			out = append(out, name)
		}
	}
	return out
}
