// Package capture owns the barcode scanner device for the length of one scan:
// it acquires the device, feeds frames to the decoder and releases the device
// as soon as the first valid identifier has been read.
package capture

import (
	"context"
	"errors"
	"fmt"

	"shelfscan/internal/barcode"
)

// Kind classifies a capture failure.
type Kind string

const (
	DeviceUnavailable  Kind = "DeviceUnavailable"
	InputAttachFailed  Kind = "InputAttachFailed"
	OutputAttachFailed Kind = "OutputAttachFailed"
)

// Error is a terminal failure of the capture phase.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("capture: %s", e.Kind)
	}
	return fmt.Sprintf("capture: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	// ErrStopped is returned by a stream whose controller was stopped before a
	// valid identifier was read.
	ErrStopped = errors.New("capture stopped")
	// ErrDrained is returned once the single identifier of a stream was consumed.
	ErrDrained = errors.New("capture stream drained")
)

// Device is an exclusively held scanner. Implementations need not be safe for
// concurrent use; the controller drives one device from one goroutine.
type Device interface {
	AttachInput() error
	AttachOutput(symbologies []barcode.Symbology) error
	ReadFrame(ctx context.Context) (barcode.Frame, error)
	Close() error
}

// Opener acquires a Device. Open may block.
type Opener interface {
	Open(ctx context.Context) (Device, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Device, error)

func (f OpenerFunc) Open(ctx context.Context) (Device, error) { return f(ctx) }
