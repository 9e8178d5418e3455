package capture

import (
	"context"
	"errors"
	"sync"

	"shelfscan/internal/barcode"
	"shelfscan/internal/logger"
)

// Controller runs at most one capture session at a time.
type Controller struct {
	opener Opener
	decode func(barcode.Frame) (barcode.Identifier, bool)
	log    *logger.Logger

	mu     sync.Mutex
	stream *Stream
}

func NewController(opener Opener, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Get()
	}
	return &Controller{
		opener: opener,
		decode: barcode.Decode,
		log:    log.WithComponent("capture"),
	}
}

// Start acquires the device on a separate goroutine and begins streaming frames.
// If a session is already running its stream is returned instead of opening the
// device a second time.
func (c *Controller) Start(ctx context.Context) *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil && !c.stream.finished() {
		return c.stream
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := newStream(cancel)
	c.stream = s
	go c.run(runCtx, s)
	return s
}

// Stop releases the device if a session is running. It returns only after the
// device has been closed and is safe to call repeatedly.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.stream
	c.mu.Unlock()

	if s == nil {
		return
	}
	s.cancel()
	<-s.done
}

// IsRunning reports whether a session currently holds the device.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil && !c.stream.finished()
}

func (c *Controller) run(ctx context.Context, s *Stream) {
	defer s.cancel()

	dev, err := c.opener.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.finish("", ErrStopped)
			return
		}
		c.log.Warn("scanner unavailable", map[string]interface{}{"error": err.Error()})
		s.finish("", &Error{Kind: DeviceUnavailable, Err: err})
		return
	}

	id, err := c.capture(ctx, dev)
	if closeErr := dev.Close(); closeErr != nil {
		c.log.Warn("closing scanner", map[string]interface{}{"error": closeErr.Error()})
	}
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			c.log.Warn("capture failed", map[string]interface{}{"kind": string(ce.Kind), "error": err.Error()})
		}
	} else {
		c.log.Debug("identifier captured", map[string]interface{}{"isbn": id.String()})
	}
	s.finish(id, err)
}

func (c *Controller) capture(ctx context.Context, dev Device) (barcode.Identifier, error) {
	if err := dev.AttachInput(); err != nil {
		return "", &Error{Kind: InputAttachFailed, Err: err}
	}
	if err := dev.AttachOutput(barcode.Supported()); err != nil {
		return "", &Error{Kind: OutputAttachFailed, Err: err}
	}

	for {
		frame, err := dev.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ErrStopped
			}
			return "", &Error{Kind: DeviceUnavailable, Err: err}
		}
		if id, ok := c.decode(frame); ok {
			return id, nil
		}
	}
}

// Stream is the lazy, at-most-one-element result of a capture session.
type Stream struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	id       barcode.Identifier
	err      error
	consumed bool
}

func newStream(cancel context.CancelFunc) *Stream {
	return &Stream{cancel: cancel, done: make(chan struct{})}
}

func (s *Stream) finish(id barcode.Identifier, err error) {
	s.mu.Lock()
	s.id = id
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

func (s *Stream) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done is closed once the device has been released.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Next blocks until the session ends. It yields the captured identifier once;
// later calls return ErrDrained. Failures are returned on every call.
// Cancelling ctx abandons the wait but leaves the session running.
func (s *Stream) Next(ctx context.Context) (barcode.Identifier, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.consumed {
		return "", ErrDrained
	}
	s.consumed = true
	return s.id, nil
}
