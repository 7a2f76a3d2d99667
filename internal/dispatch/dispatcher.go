// Package dispatch serialises everything that touches a connection's state.
// One goroutine drains the backend's event stream and a queue of client
// requests, running each item to completion before taking the next.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/matheus3301/imsm/internal/backend"
	"go.uber.org/zap"
)

// ErrStopped is returned to callers whose request reaches a stopped
// dispatcher.
var ErrStopped = errors.New("dispatcher stopped")

// Handler consumes backend events on the dispatcher goroutine.
type Handler interface {
	HandleEvent(evt backend.Event)
}

// Dispatcher is the single sequencing point of a connection.
type Dispatcher struct {
	events   <-chan backend.Event
	handler  Handler
	logger   *zap.Logger
	requests chan func()

	stop     chan struct{}
	done     chan struct{}
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

// New creates a dispatcher over events. It does nothing until Start.
func New(events <-chan backend.Event, handler Handler, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		events:   events,
		handler:  handler,
		logger:   logger,
		requests: make(chan func()),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the loop. Calling it more than once, or after Stop, has no
// effect.
func (d *Dispatcher) Start() {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if d.started || d.stopped() {
		return
	}
	d.started = true
	go d.run()
}

// Stop ends the loop and waits for the item in progress to finish. Callers
// blocked in Do fail with ErrStopped. Stop must not be called from the
// dispatcher goroutine.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
	d.startMu.Lock()
	started := d.started
	d.startMu.Unlock()
	if started {
		<-d.done
	}
}

// Do runs fn on the dispatcher and waits for it. The request queue is
// unbuffered, so fn either never runs (ctx is done or the dispatcher
// stopped first, and the error says which) or runs to completion even if
// ctx is cancelled meanwhile.
func (d *Dispatcher) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	req := func() {
		defer close(finished)
		fn()
	}
	select {
	case d.requests <- req:
	case <-d.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Call is Do for functions with a result.
func Call[T any](ctx context.Context, d *Dispatcher, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	if derr := d.Do(ctx, func() { out, err = fn() }); derr != nil {
		var zero T
		return zero, derr
	}
	return out, err
}

func (d *Dispatcher) run() {
	defer close(d.done)
	events := d.events
	for {
		// Stop wins over queued work between items.
		if d.stopped() {
			return
		}
		select {
		case <-d.stop:
			return
		case evt, ok := <-events:
			if !ok {
				d.logger.Info("backend event stream closed")
				events = nil
				continue
			}
			d.handler.HandleEvent(evt)
		case req := <-d.requests:
			req()
		}
	}
}

func (d *Dispatcher) stopped() bool {
	select {
	case <-d.stop:
		return true
	default:
		return false
	}
}
