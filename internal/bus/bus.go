// Package bus carries connection notifications from the core to its
// watchers: the RPC event stream, the adapters and the tests.
package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Bus is an in-process publish/subscribe bus filtered by kind prefix.
// Publishing never blocks: a subscriber whose buffer is full loses the event
// and its drop counter is bumped.
type Bus struct {
	mu   sync.Mutex
	subs map[int]*Subscription
	next int
	seq  uint64
}

// Subscription receives the events of one namespace.
type Subscription struct {
	bus       *Bus
	id        int
	namespace string
	ch        chan Event
	dropped   atomic.Uint64
	once      sync.Once
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*Subscription)}
}

// Publish stamps evt with an id, the next sequence number and, when unset,
// the current time, then offers it to every matching subscriber. Events are
// delivered to each subscriber in sequence order.
func (b *Bus) Publish(evt Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	evt.Seq = b.seq
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	for _, sub := range b.subs {
		if !evt.HasPrefix(sub.namespace) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			sub.dropped.Add(1)
		}
	}
	return evt
}

// Emit publishes payload under kind.
func (b *Bus) Emit(kind string, payload any) Event {
	return b.Publish(Event{Kind: kind, Payload: payload})
}

// Subscribe registers a subscriber for kinds starting with namespace.
// bufSize bounds how far it may fall behind before events are dropped.
func (b *Bus) Subscribe(namespace string, bufSize int) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscription{
		bus:       b,
		id:        b.next,
		namespace: namespace,
		ch:        make(chan Event, bufSize),
	}
	b.next++
	b.subs[sub.id] = sub
	return sub
}

// Events returns the delivery channel. It is never closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were lost to a full buffer.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
	})
}
