package capture

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/pilebones/go-udev/netlink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfscan/internal/barcode"
	"shelfscan/internal/logger"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want barcode.Symbol
	}{
		{"]E09780140449136", barcode.Symbol{Type: barcode.SymbologyEAN13, Payload: "9780140449136"}},
		{"]E496385074", barcode.Symbol{Type: barcode.SymbologyEAN8, Payload: "96385074"}},
		{"]C0ABC-123", barcode.Symbol{Type: barcode.SymbologyCode128, Payload: "ABC-123"}},
		{"]Q1https://example.com", barcode.Symbol{Type: barcode.SymbologyQR, Payload: "https://example.com"}},
		{"]X0payload", barcode.Symbol{Type: barcode.SymbologyUnknown, Payload: "payload"}},
		{"9780140449136", barcode.Symbol{Type: barcode.SymbologyEAN13, Payload: "9780140449136"}},
		{"96385074", barcode.Symbol{Type: barcode.SymbologyEAN8, Payload: "96385074"}},
		{"12345", barcode.Symbol{Type: barcode.SymbologyUnknown, Payload: "12345"}},
		{"hello", barcode.Symbol{Type: barcode.SymbologyUnknown, Payload: "hello"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLine(tt.line))
		})
	}
}

func TestLineDevice_Stdin(t *testing.T) {
	opener := &LineOpener{
		Path:  StdinPath,
		Stdin: strings.NewReader("]Q1not-a-book\n\n]E09780140449136\n"),
	}
	c := NewController(opener, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	id, err := c.Start(ctx).Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, barcode.Identifier("9780140449136"), id)
}

func TestLineDevice_EOFIsDeviceUnavailable(t *testing.T) {
	opener := &LineOpener{Path: StdinPath, Stdin: strings.NewReader("hello\n")}
	c := NewController(opener, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Start(ctx).Next(ctx)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, DeviceUnavailable, ce.Kind)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineDevice_OutputBeforeInput(t *testing.T) {
	d := &LineDevice{path: StdinPath, shared: startLineSource(strings.NewReader(""), nil)}
	assert.ErrorIs(t, d.AttachOutput(barcode.Supported()), ErrInputNotAttached)

	require.NoError(t, d.AttachInput())
	assert.ErrorIs(t, d.AttachOutput(nil), ErrNoSymbologies)
	require.NoError(t, d.Close())
}

func TestLineOpener_StdinSharedAcrossDevices(t *testing.T) {
	opener := &LineOpener{
		Path:  StdinPath,
		Stdin: strings.NewReader("9780140449136\n96385074\n"),
	}
	c := NewController(opener, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	first, err := c.Start(ctx).Next(ctx)
	require.NoError(t, err)
	second, err := c.Start(ctx).Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, barcode.Identifier("9780140449136"), first)
	assert.Equal(t, barcode.Identifier("96385074"), second)

	_, err = c.Start(ctx).Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineOpener_FileDevice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanner")
	require.NoError(t, os.WriteFile(path, []byte("96385074\n"), 0o600))

	opener := &LineOpener{Path: path, LockDir: dir}
	c := NewController(opener, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	id, err := c.Start(ctx).Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, barcode.Identifier("96385074"), id)

	// lock released with the device
	other := flock.New(opener.lockPath())
	ok, err := other.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, other.Unlock())
}

func TestLineOpener_Busy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanner")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	opener := &LineOpener{Path: path, LockDir: dir}
	held := flock.New(opener.lockPath())
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { _ = held.Unlock() })

	_, err = opener.Open(context.Background())
	assert.ErrorIs(t, err, ErrDeviceBusy)
}

func TestLineOpener_Missing(t *testing.T) {
	opener := &LineOpener{Path: filepath.Join(t.TempDir(), "nope")}
	_, err := opener.Open(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHotplugWatcher_HandleEvent(t *testing.T) {
	w := NewHotplugWatcher("/dev/ttyACM7", logger.Nop())
	assert.False(t, w.Present())

	w.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": "ttyACM7"}})
	assert.True(t, w.Present())

	w.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "/dev/ttyACM1"}})
	assert.True(t, w.Present())

	w.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "/dev/ttyACM7"}})
	assert.False(t, w.Present())
}
