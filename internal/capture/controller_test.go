package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfscan/internal/barcode"
	"shelfscan/internal/logger"
)

type fakeDevice struct {
	frames    chan barcode.Frame
	inputErr  error
	outputErr error

	mu          sync.Mutex
	closed      int
	symbologies []barcode.Symbology
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{frames: make(chan barcode.Frame, 8)}
}

func (d *fakeDevice) AttachInput() error { return d.inputErr }

func (d *fakeDevice) AttachOutput(s []barcode.Symbology) error {
	d.mu.Lock()
	d.symbologies = s
	d.mu.Unlock()
	return d.outputErr
}

func (d *fakeDevice) ReadFrame(ctx context.Context) (barcode.Frame, error) {
	select {
	case <-ctx.Done():
		return barcode.Frame{}, ctx.Err()
	case f, ok := <-d.frames:
		if !ok {
			return barcode.Frame{}, errors.New("unplugged")
		}
		return f, nil
	}
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.closed++
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func ean13(payload string) barcode.Frame {
	return barcode.Frame{Symbols: []barcode.Symbol{{Type: barcode.SymbologyEAN13, Payload: payload}}}
}

func staticOpener(dev Device, opens *int32) Opener {
	return OpenerFunc(func(ctx context.Context) (Device, error) {
		atomic.AddInt32(opens, 1)
		return dev, nil
	})
}

func nextWithTimeout(t *testing.T, s *Stream) (barcode.Identifier, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.Next(ctx)
}

func TestController_YieldsFirstValidIdentifier(t *testing.T) {
	dev := newFakeDevice()
	var opens int32
	c := NewController(staticOpener(dev, &opens), logger.Nop())

	dev.frames <- barcode.Frame{}
	dev.frames <- barcode.Frame{Symbols: []barcode.Symbol{{Type: barcode.SymbologyQR, Payload: "hello"}}}
	dev.frames <- ean13("9780140449137")
	dev.frames <- ean13("9780140449136")
	dev.frames <- ean13("0000000000000")

	s := c.Start(context.Background())
	id, err := nextWithTimeout(t, s)
	require.NoError(t, err)
	assert.Equal(t, barcode.Identifier("9780140449136"), id)

	assert.False(t, c.IsRunning())
	assert.Equal(t, 1, dev.closeCount())
	assert.Equal(t, int32(1), atomic.LoadInt32(&opens))
	assert.Equal(t, barcode.Supported(), dev.symbologies)

	_, err = nextWithTimeout(t, s)
	assert.ErrorIs(t, err, ErrDrained)
}

func TestController_Failures(t *testing.T) {
	t.Run("device unavailable", func(t *testing.T) {
		c := NewController(OpenerFunc(func(ctx context.Context) (Device, error) {
			return nil, errors.New("no camera")
		}), logger.Nop())

		_, err := nextWithTimeout(t, c.Start(context.Background()))
		var ce *Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, DeviceUnavailable, ce.Kind)
		assert.False(t, c.IsRunning())
	})

	t.Run("input attach failed", func(t *testing.T) {
		dev := newFakeDevice()
		dev.inputErr = errors.New("busy")
		var opens int32
		c := NewController(staticOpener(dev, &opens), logger.Nop())

		_, err := nextWithTimeout(t, c.Start(context.Background()))
		var ce *Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, InputAttachFailed, ce.Kind)
		assert.Equal(t, 1, dev.closeCount())
	})

	t.Run("output attach failed", func(t *testing.T) {
		dev := newFakeDevice()
		dev.outputErr = errors.New("unsupported")
		var opens int32
		c := NewController(staticOpener(dev, &opens), logger.Nop())

		_, err := nextWithTimeout(t, c.Start(context.Background()))
		var ce *Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, OutputAttachFailed, ce.Kind)
		assert.Equal(t, 1, dev.closeCount())
	})

	t.Run("device lost mid scan", func(t *testing.T) {
		dev := newFakeDevice()
		close(dev.frames)
		var opens int32
		c := NewController(staticOpener(dev, &opens), logger.Nop())

		_, err := nextWithTimeout(t, c.Start(context.Background()))
		var ce *Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, DeviceUnavailable, ce.Kind)
		assert.Equal(t, 1, dev.closeCount())
	})
}

func TestController_StopReleasesDevice(t *testing.T) {
	dev := newFakeDevice()
	var opens int32
	c := NewController(staticOpener(dev, &opens), logger.Nop())

	s := c.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&opens) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, c.IsRunning())

	c.Stop()
	assert.False(t, c.IsRunning())
	assert.Equal(t, 1, dev.closeCount())

	_, err := nextWithTimeout(t, s)
	assert.ErrorIs(t, err, ErrStopped)

	c.Stop()
	assert.Equal(t, 1, dev.closeCount())
}

func TestController_StopWhenIdle(t *testing.T) {
	c := NewController(OpenerFunc(func(ctx context.Context) (Device, error) {
		return newFakeDevice(), nil
	}), logger.Nop())
	c.Stop()
	assert.False(t, c.IsRunning())
}

func TestController_StartIsReentrant(t *testing.T) {
	dev := newFakeDevice()
	var opens int32
	c := NewController(staticOpener(dev, &opens), logger.Nop())

	first := c.Start(context.Background())
	second := c.Start(context.Background())
	assert.Same(t, first, second)

	dev.frames <- ean13("9780140449136")
	_, err := nextWithTimeout(t, first)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&opens))
}

func TestController_FreshStreamAfterCompletion(t *testing.T) {
	var opens int32
	var devices []*fakeDevice
	var mu sync.Mutex
	c := NewController(OpenerFunc(func(ctx context.Context) (Device, error) {
		atomic.AddInt32(&opens, 1)
		dev := newFakeDevice()
		mu.Lock()
		devices = append(devices, dev)
		mu.Unlock()
		return dev, nil
	}), logger.Nop())

	first := c.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&opens) == 1 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	devices[0].frames <- ean13("9780140449136")
	mu.Unlock()
	id, err := nextWithTimeout(t, first)
	require.NoError(t, err)
	assert.Equal(t, barcode.Identifier("9780140449136"), id)

	second := c.Start(context.Background())
	assert.NotSame(t, first, second)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&opens) == 2 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	devices[1].frames <- ean13("0000000000000")
	mu.Unlock()
	id, err = nextWithTimeout(t, second)
	require.NoError(t, err)
	assert.Equal(t, barcode.Identifier("0000000000000"), id)
}

func TestController_ContextCancelStops(t *testing.T) {
	dev := newFakeDevice()
	var opens int32
	c := NewController(staticOpener(dev, &opens), logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	s := c.Start(ctx)
	cancel()

	_, err := nextWithTimeout(t, s)
	assert.ErrorIs(t, err, ErrStopped)
	assert.False(t, c.IsRunning())
}
