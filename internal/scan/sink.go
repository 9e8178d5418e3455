package scan

import (
	"sync"
)

// EventSink receives session events in transition order.
type EventSink interface {
	Publish(Event)
}

type discardSink struct{}

func (discardSink) Publish(Event) {}

// MultiSink publishes to every sink in order.
type MultiSink []EventSink

func (m MultiSink) Publish(ev Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}

// ChannelSink hands events to a single consumer goroutine, normally the one
// driving the terminal. Publish blocks once the buffer is full.
type ChannelSink struct {
	ch chan Event
}

func NewChannelSink(capacity int) *ChannelSink {
	if capacity < 8 {
		capacity = 8
	}
	return &ChannelSink{ch: make(chan Event, capacity)}
}

func (c *ChannelSink) Publish(ev Event) { c.ch <- ev }

func (c *ChannelSink) Events() <-chan Event { return c.ch }

// Broadcaster fans events out to any number of subscribers. Slow subscribers
// miss events rather than stalling the pipeline.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	buffer int
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 16
	}
	return &Broadcaster{subs: make(map[chan Event]struct{}), buffer: buffer}
}

// Subscribe registers a listener. Call the returned func to unsubscribe; it
// closes the channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
