// Package scan drives one scan gesture from capture to a stored catalog entry.
//
// A session moves through Idle → Capturing → Decoding → LookingUp → Saving and
// ends in exactly one terminal event, Succeeded or Failed. Stages never overlap.
// Cancel is only honoured while Capturing.
package scan

import (
	"errors"
	"fmt"
	"time"

	"shelfscan/internal/barcode"
	"shelfscan/internal/catalog"
)

type State string

const (
	Idle      State = "Idle"
	Capturing State = "Capturing"
	Decoding  State = "Decoding"
	LookingUp State = "LookingUp"
	Saving    State = "Saving"
	Succeeded State = "Succeeded"
	Failed    State = "Failed"
)

// Terminal reports whether s ends a session.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

var (
	ErrSessionActive = errors.New("a scan session is already in progress")
	ErrCancelled     = errors.New("scan cancelled")
)

type FailureKind string

const (
	CaptureError FailureKind = "CaptureError"
	LookupError  FailureKind = "LookupError"
	PersistError FailureKind = "PersistError"
)

// Failure is the payload of a Failed event. Detail carries the specific
// sub-kind, e.g. DeviceUnavailable or NotFound.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Detail  string      `json:"detail"`
	Message string      `json:"message,omitempty"`
	Err     error       `json:"-"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s(%s): %s", f.Kind, f.Detail, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// Event is one state transition of a session.
type Event struct {
	SessionID  string              `json:"session_id"`
	State      State               `json:"state"`
	Identifier barcode.Identifier  `json:"isbn,omitempty"`
	Record     *catalog.BookRecord `json:"record,omitempty"`
	Failure    *Failure            `json:"failure,omitempty"`
	Cancelled  bool                `json:"cancelled,omitempty"`
	At         time.Time           `json:"at"`
}

// Result is what a finished session produced.
type Result struct {
	SessionID string              `json:"session_id"`
	State     State               `json:"state"`
	Record    *catalog.BookRecord `json:"record,omitempty"`
	Entry     *catalog.Entry      `json:"entry,omitempty"`
	Failure   *Failure            `json:"failure,omitempty"`
}

// RetryPolicy bounds automatic retries. Only LookupUnavailable is ever retried.
type RetryPolicy struct {
	LookupAttempts int
	Backoff        time.Duration
}

// DefaultRetryPolicy performs no retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{LookupAttempts: 1, Backoff: 500 * time.Millisecond}
}

func (p RetryPolicy) attempts() int {
	if p.LookupAttempts < 1 {
		return 1
	}
	return p.LookupAttempts
}
