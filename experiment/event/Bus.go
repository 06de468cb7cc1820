package event

import (
	"sync"
	"sync/atomic"

	channerics "github.com/niceyeti/channerics/channels"
)

// DefaultCapacity is the default number of events a Bus buffers
const DefaultCapacity int = 256

// Bus carries events from a single publisher to observers. Publishing
// never blocks: when the buffer is full the event is dropped and
// counted. A nil *Bus discards every event.
type Bus struct {
	mu      sync.RWMutex
	events  chan Event
	closed  bool
	dropped atomic.Int64
}

// NewBus returns a Bus which buffers up to capacity events
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Bus{events: make(chan Event, capacity)}
}

// Publish sends e to the bus and returns whether it was delivered
func (b *Bus) Publish(e Event) bool {
	if b == nil {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}

	select {
	case b.events <- e:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Events returns the channel on which published events are received.
// It is closed by Close.
func (b *Bus) Events() <-chan Event {
	return b.events
}

// Dropped returns the number of events dropped because the buffer was
// full
func (b *Bus) Dropped() int64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

// Close closes the bus. Events published after Close are discarded.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
}

// Subscribe fans in out to n consumers. Every consumer receives every
// event, so each must keep reading until its channel is closed or done
// is closed.
func Subscribe(done <-chan struct{}, in <-chan Event, n int) []<-chan Event {
	outs := channerics.Broadcast(done, in, n)
	subs := make([]<-chan Event, len(outs))
	for i := range outs {
		subs[i] = outs[i]
	}
	return subs
}

// Filter returns a channel carrying only the events of the given kinds
func Filter(done <-chan struct{}, in <-chan Event,
	kinds ...Kind) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)
		for e := range channerics.OrDone(done, in) {
			if !contains(kinds, e.Kind) {
				continue
			}
			select {
			case out <- e:
			case <-done:
				return
			}
		}
	}()

	return out
}

func contains(kinds []Kind, k Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
