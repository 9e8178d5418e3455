package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"shelfscan/internal/barcode"
	"shelfscan/internal/capture"
	"shelfscan/internal/catalog"
	"shelfscan/internal/logger"
	"shelfscan/internal/lookup"
)

// Capturer owns the capture device. *capture.Controller satisfies it.
type Capturer interface {
	Start(ctx context.Context) *capture.Stream
	Stop()
	IsRunning() bool
}

type Looker interface {
	Lookup(ctx context.Context, id barcode.Identifier) (catalog.BookRecord, error)
}

type Saver interface {
	Save(ctx context.Context, rec catalog.BookRecord) (catalog.Entry, error)
}

type Option func(*Orchestrator)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

func WithLogger(log *logger.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log.WithComponent("scan")
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator runs at most one session at a time.
type Orchestrator struct {
	capturer Capturer
	looker   Looker
	saver    Saver
	sink     EventSink
	retry    RetryPolicy
	log      *logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	session *Session
}

func NewOrchestrator(capturer Capturer, looker Looker, saver Saver, sink EventSink, opts ...Option) *Orchestrator {
	if sink == nil {
		sink = discardSink{}
	}
	o := &Orchestrator{
		capturer: capturer,
		looker:   looker,
		saver:    saver,
		sink:     sink,
		retry:    DefaultRetryPolicy(),
		log:      logger.Get().WithComponent("scan"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Scan starts a new session. The capture stage runs until an identifier is
// read, ctx is done, or Cancel is called; there is no built-in timeout.
func (o *Orchestrator) Scan(ctx context.Context) (*Session, error) {
	s, err := o.begin()
	if err != nil {
		return nil, err
	}

	// The stream exists before Capturing is published, so Cancel always has
	// a device session to stop.
	stream := o.capturer.Start(ctx)
	o.transition(s, Idle, Capturing, Event{})
	go o.runCapture(ctx, s, stream)
	return s, nil
}

// Resolve runs the lookup and save stages for an identifier typed by hand.
func (o *Orchestrator) Resolve(ctx context.Context, id barcode.Identifier) (*Session, error) {
	s, err := o.begin()
	if err != nil {
		return nil, err
	}
	o.transition(s, Idle, LookingUp, Event{Identifier: id})
	go o.runLookup(ctx, s, id)
	return s, nil
}

// Cancel aborts the current session if it is still Capturing. The device is
// released before Cancel returns. In any other state it does nothing and
// returns false.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	s := o.session
	o.mu.Unlock()
	if s == nil {
		return false
	}

	if !o.transition(s, Capturing, Idle, Event{Cancelled: true}) {
		return false
	}
	o.capturer.Stop()
	s.finish(Result{SessionID: s.ID, State: Idle}, ErrCancelled)
	o.log.Info("scan cancelled", map[string]interface{}{"session_id": s.ID})
	return true
}

// Current returns the active session, or the last one if none is active.
func (o *Orchestrator) Current() (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session, o.session != nil
}

// Active reports whether a session has not reached its end yet.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session != nil && !o.session.finished()
}

func (o *Orchestrator) begin() (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session != nil && !o.session.finished() {
		return nil, ErrSessionActive
	}
	s := newSession(uuid.NewString())
	o.session = s
	return s, nil
}

// transition moves s from one state to the next and publishes the event. It
// returns false if s was no longer in from.
func (o *Orchestrator) transition(s *Session, from, to State, ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != from {
		return false
	}
	s.state = to
	ev.SessionID = s.ID
	ev.State = to
	ev.At = o.now()
	s.last = ev
	o.sink.Publish(ev)

	o.log.Debug("scan transition", map[string]interface{}{
		"session_id": s.ID,
		"from":       string(from),
		"to":         string(to),
	})
	return true
}

func (o *Orchestrator) runCapture(ctx context.Context, s *Session, stream *capture.Stream) {
	// The stream always ends: its context derives from ctx and Stop cancels it.
	id, err := stream.Next(context.Background())
	if err != nil {
		if errors.Is(err, capture.ErrStopped) {
			if o.transition(s, Capturing, Idle, Event{Cancelled: true}) {
				s.finish(Result{SessionID: s.ID, State: Idle}, ErrCancelled)
			}
			return
		}
		o.fail(s, Capturing, captureFailure(err))
		return
	}

	if !o.transition(s, Capturing, Decoding, Event{Identifier: id}) {
		// cancelled while the identifier was being delivered
		return
	}
	if !o.transition(s, Decoding, LookingUp, Event{Identifier: id}) {
		return
	}
	o.runLookup(ctx, s, id)
}

func (o *Orchestrator) runLookup(ctx context.Context, s *Session, id barcode.Identifier) {
	rec, err := o.lookupWithRetry(ctx, s, id)
	if err != nil {
		o.fail(s, LookingUp, lookupFailure(err))
		return
	}

	o.transition(s, LookingUp, Saving, Event{Identifier: id, Record: &rec})
	entry, err := o.saver.Save(ctx, rec)
	if err != nil {
		o.fail(s, Saving, persistFailure(err))
		return
	}

	o.transition(s, Saving, Succeeded, Event{Identifier: id, Record: &rec})
	o.log.Info("book catalogued", map[string]interface{}{
		"session_id": s.ID,
		"isbn":       id.String(),
		"title":      rec.Title,
		"entry_id":   entry.ID,
	})
	s.finish(Result{SessionID: s.ID, State: Succeeded, Record: &rec, Entry: &entry}, nil)
}

func (o *Orchestrator) lookupWithRetry(ctx context.Context, s *Session, id barcode.Identifier) (catalog.BookRecord, error) {
	attempts := o.retry.attempts()
	for attempt := 1; ; attempt++ {
		rec, err := o.looker.Lookup(ctx, id)
		if err == nil || lookup.KindOf(err) != lookup.Unavailable || attempt >= attempts {
			return rec, err
		}

		o.log.Warn("lookup unavailable, retrying", map[string]interface{}{
			"session_id": s.ID,
			"isbn":       id.String(),
			"attempt":    attempt,
		})
		select {
		case <-ctx.Done():
			return rec, err
		case <-time.After(o.retry.Backoff * time.Duration(attempt)):
		}
	}
}

func (o *Orchestrator) fail(s *Session, from State, f *Failure) {
	if !o.transition(s, from, Failed, Event{Failure: f}) {
		return
	}
	o.log.Warn("scan failed", map[string]interface{}{
		"session_id": s.ID,
		"kind":       string(f.Kind),
		"detail":     f.Detail,
		"error":      f.Message,
	})
	s.finish(Result{SessionID: s.ID, State: Failed, Failure: f}, f)
}

func captureFailure(err error) *Failure {
	detail := string(capture.DeviceUnavailable)
	var ce *capture.Error
	if errors.As(err, &ce) {
		detail = string(ce.Kind)
	}
	return &Failure{Kind: CaptureError, Detail: detail, Message: err.Error(), Err: err}
}

func lookupFailure(err error) *Failure {
	detail := lookup.KindOf(err)
	if detail == "" {
		detail = lookup.Unavailable
	}
	return &Failure{Kind: LookupError, Detail: string(detail), Message: err.Error(), Err: err}
}

func persistFailure(err error) *Failure {
	msg := err.Error()
	var pe *catalog.PersistError
	if errors.As(err, &pe) {
		msg = pe.Reason
	}
	return &Failure{Kind: PersistError, Detail: "PersistFailure", Message: msg, Err: err}
}
