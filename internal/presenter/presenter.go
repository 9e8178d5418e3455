// Package presenter turns scan events into the one-line messages shown to the
// person at the station.
package presenter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"shelfscan/internal/capture"
	"shelfscan/internal/lookup"
	"shelfscan/internal/profile"
	"shelfscan/internal/scan"
)

type kind int

const (
	kindInfo kind = iota
	kindOK
	kindWarn
	kindError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// Presenter writes event messages for one viewer role.
type Presenter struct {
	out      io.Writer
	role     profile.Role
	colorize bool
}

func New(out io.Writer, role profile.Role) *Presenter {
	return &Presenter{out: out, role: role, colorize: ShouldColorize(out)}
}

// Welcome greets the signed-in role.
func Welcome(role profile.Role) string {
	switch role {
	case profile.RoleAdmin:
		return "Welcome Admin!"
	case profile.RoleLibrarian:
		return "Welcome Librarian!"
	case profile.RoleMember:
		return "Welcome Member!"
	default:
		return "Welcome!"
	}
}

// Render writes the message for ev, if it has one.
func (p *Presenter) Render(ev scan.Event) error {
	msg, k := Message(ev, p.role)
	if msg == "" {
		return nil
	}
	if p.colorize {
		msg = color(k) + msg + ansiReset
	}
	_, err := fmt.Fprintln(p.out, msg)
	return err
}

// Message returns the text for ev as seen by role. Intermediate states only
// produce a short status line; per-frame misses never reach here.
func Message(ev scan.Event, role profile.Role) (string, kind) {
	switch ev.State {
	case scan.Capturing:
		return "Point the scanner at the barcode on the back cover.", kindInfo
	case scan.Decoding:
		return fmt.Sprintf("Read %s.", ev.Identifier), kindInfo
	case scan.LookingUp:
		return fmt.Sprintf("Looking up %s on Open Library...", ev.Identifier), kindInfo
	case scan.Saving:
		return "Adding to the catalog...", kindInfo
	case scan.Idle:
		if ev.Cancelled {
			return "Scan cancelled.", kindWarn
		}
		return "", kindInfo
	case scan.Succeeded:
		if ev.Record == nil {
			return "Book added to the catalog.", kindOK
		}
		authors := strings.Join(ev.Record.Authors, ", ")
		if authors == "" {
			authors = "unknown author"
		}
		return fmt.Sprintf("Added %q by %s (%s).", ev.Record.Title, authors, ev.Record.Identifier), kindOK
	case scan.Failed:
		return failureMessage(ev.Failure, role), kindError
	default:
		return "", kindInfo
	}
}

func failureMessage(f *scan.Failure, role profile.Role) string {
	if f == nil {
		return "Scan failed."
	}

	var msg string
	switch f.Kind {
	case scan.CaptureError:
		switch capture.Kind(f.Detail) {
		case capture.InputAttachFailed, capture.OutputAttachFailed:
			msg = "The scanner could not be set up for book barcodes."
		default:
			msg = "No scanner is available. Check that it is plugged in."
		}
	case scan.LookupError:
		switch lookup.Kind(f.Detail) {
		case lookup.NotFound:
			msg = "This ISBN is not in Open Library."
		case lookup.MalformedResponse:
			msg = "Open Library sent an answer we could not read."
		default:
			msg = "Open Library could not be reached. Try again in a moment."
		}
	case scan.PersistError:
		msg = "The book was found but could not be added to the catalog."
	default:
		msg = "Scan failed."
	}

	switch role {
	case profile.RoleAdmin:
		// admins get the underlying cause
		if f.Message != "" {
			msg = fmt.Sprintf("%s [%s/%s: %s]", msg, f.Kind, f.Detail, f.Message)
		}
	case profile.RoleLibrarian:
		if f.Kind == scan.LookupError && lookup.Kind(f.Detail) == lookup.NotFound {
			msg += " Use manual entry to catalog it by hand."
		}
	}
	return msg
}

func color(k kind) string {
	switch k {
	case kindOK:
		return ansiGreen
	case kindWarn:
		return ansiYellow
	case kindError:
		return ansiRed
	default:
		return ansiBlue
	}
}

// ShouldColorize reports whether w is an interactive terminal.
func ShouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
