package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"shelfscan/internal/barcode"
)

// StdinPath selects the process's standard input as the scanner.
const StdinPath = "-"

var (
	ErrDeviceBusy       = errors.New("scanner is held by another process")
	ErrInputNotAttached = errors.New("input not attached")
	ErrNoSymbologies    = errors.New("no symbologies requested")
)

// LineOpener opens keyboard-wedge or serial scanners that emit one decoded
// symbol per line. Exclusivity across processes is enforced with a lock file.
type LineOpener struct {
	Path    string
	LockDir string
	// Stdin is used when Path is StdinPath. Defaults to os.Stdin.
	Stdin io.Reader

	mu       sync.Mutex
	stdinSrc *lineSource
}

func (o *LineOpener) Open(ctx context.Context) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.Path == "" {
		return nil, errors.New("no scanner device configured")
	}

	if o.Path == StdinPath {
		return &LineDevice{path: o.Path, shared: o.stdinSource()}, nil
	}

	if _, err := os.Stat(o.Path); err != nil {
		return nil, fmt.Errorf("stat %s: %w", o.Path, err)
	}

	lock := flock.New(o.lockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", o.Path, err)
	}
	if !ok {
		return nil, ErrDeviceBusy
	}
	return &LineDevice{path: o.Path, lock: lock}, nil
}

// stdinSource is started once; every stdin device reads from it so no line
// is lost to a previous device's buffer.
func (o *LineOpener) stdinSource() *lineSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stdinSrc == nil {
		in := o.Stdin
		if in == nil {
			in = os.Stdin
		}
		o.stdinSrc = startLineSource(in, nil)
	}
	return o.stdinSrc
}

func (o *LineOpener) lockPath() string {
	dir := o.LockDir
	if dir == "" {
		dir = os.TempDir()
	}
	name := strings.ReplaceAll(strings.TrimPrefix(o.Path, "/"), "/", "_")
	return filepath.Join(dir, "shelfscan-"+name+".lock")
}

// LineDevice reads one symbol per line. Lines may carry an AIM symbology
// identifier prefix such as "]E0".
type LineDevice struct {
	path   string
	shared *lineSource
	lock   *flock.Flock

	file    *os.File
	src     *lineSource
	quit    chan struct{}
	allowed map[barcode.Symbology]bool

	closeOnce sync.Once
}

func (d *LineDevice) AttachInput() error {
	if d.shared != nil {
		d.src = d.shared
		return nil
	}

	f, err := os.Open(d.path)
	if err != nil {
		return err
	}
	d.file = f
	d.quit = make(chan struct{})
	d.src = startLineSource(f, d.quit)
	return nil
}

func (d *LineDevice) AttachOutput(symbologies []barcode.Symbology) error {
	if d.src == nil {
		return ErrInputNotAttached
	}
	if len(symbologies) == 0 {
		return ErrNoSymbologies
	}
	d.allowed = make(map[barcode.Symbology]bool, len(symbologies))
	for _, s := range symbologies {
		d.allowed[s] = true
	}
	return nil
}

func (d *LineDevice) ReadFrame(ctx context.Context) (barcode.Frame, error) {
	select {
	case <-ctx.Done():
		return barcode.Frame{}, ctx.Err()
	case <-d.src.done:
		return barcode.Frame{}, d.src.err
	case line := <-d.src.lines:
		sym := ParseLine(line)
		if !d.allowed[sym.Type] {
			return barcode.Frame{}, nil
		}
		return barcode.Frame{Symbols: []barcode.Symbol{sym}}, nil
	}
}

func (d *LineDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if d.quit != nil {
			close(d.quit)
		}
		if d.file != nil {
			err = d.file.Close()
		}
		if d.lock != nil {
			if unlockErr := d.lock.Unlock(); unlockErr != nil && err == nil {
				err = unlockErr
			}
		}
	})
	return err
}

// lineSource hands non-empty lines from r to whoever is reading. err is set
// before done is closed.
type lineSource struct {
	lines chan string
	done  chan struct{}
	err   error
}

func startLineSource(r io.Reader, quit <-chan struct{}) *lineSource {
	src := &lineSource{lines: make(chan string), done: make(chan struct{})}
	go src.run(r, quit)
	return src
}

func (s *lineSource) run(r io.Reader, quit <-chan struct{}) {
	defer close(s.done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case s.lines <- line:
		case <-quit:
			s.err = ErrStopped
			return
		}
	}
	s.err = scanner.Err()
	if s.err == nil {
		s.err = io.EOF
	}
}

var aimPrefixes = []struct {
	prefix string
	sym    barcode.Symbology
}{
	{"]E0", barcode.SymbologyEAN13},
	{"]E4", barcode.SymbologyEAN8},
	{"]E1", barcode.SymbologyUPCE},
	{"]E2", barcode.SymbologyUPCE},
	{"]E3", barcode.SymbologyUPCE},
	{"]C", barcode.SymbologyCode128},
	{"]Q", barcode.SymbologyQR},
}

// ParseLine turns one scanner line into a symbol. Unprefixed all-digit lines of
// length 13 or 8 are taken as EAN-13 or EAN-8.
func ParseLine(line string) barcode.Symbol {
	if strings.HasPrefix(line, "]") {
		for _, p := range aimPrefixes {
			if strings.HasPrefix(line, p.prefix) {
				payload := line[len(p.prefix):]
				// ]C and ]Q carry a one-character modifier.
				if len(p.prefix) == 2 && len(payload) > 0 {
					payload = payload[1:]
				}
				return barcode.Symbol{Type: p.sym, Payload: payload}
			}
		}
		if len(line) >= 3 {
			return barcode.Symbol{Type: barcode.SymbologyUnknown, Payload: line[3:]}
		}
		return barcode.Symbol{Type: barcode.SymbologyUnknown, Payload: line}
	}

	if isDigits(line) {
		switch len(line) {
		case 13:
			return barcode.Symbol{Type: barcode.SymbologyEAN13, Payload: line}
		case 8:
			return barcode.Symbol{Type: barcode.SymbologyEAN8, Payload: line}
		}
	}
	return barcode.Symbol{Type: barcode.SymbologyUnknown, Payload: line}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
