// Package loopback is an in-memory backend. It talks to no network: sends and
// roster edits are recorded, and events are injected by the caller or
// synthesised the way a server would answer.
package loopback

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/imerr"
	"github.com/matheus3301/imsm/internal/status"
	"go.uber.org/zap"
)

// Options configures the loopback backend.
type Options struct {
	// SelfID is echoed back in presence updates for our own status.
	SelfID string
	// Echo answers every sent message with an identical incoming one.
	Echo bool
	// ConfirmRoster answers roster edits with the push a server would send.
	ConfirmRoster bool
	// EventBuffer sizes the event stream. Zero means 64.
	EventBuffer int
}

// Sent is a recorded SendMessage call.
type Sent struct {
	Identifier string
	Type       backend.MessageType
	Body       string
	Token      string
}

// Edit is a recorded EditRoster call.
type Edit struct {
	Identifier string
	Op         backend.RosterOp
}

// Backend implements backend.Backend and backend.PresenceSetter.
type Backend struct {
	opts   Options
	logger *zap.Logger
	events chan backend.Event

	mu        sync.Mutex
	connected bool
	sent      []Sent
	edits     []Edit
	presence  [2]string

	// closeMu guards closing events against in-flight sends; done releases
	// senders blocked on a full stream.
	closeMu   sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a disconnected loopback backend.
func New(opts Options, logger *zap.Logger) *Backend {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		opts:   opts,
		logger: logger,
		events: make(chan backend.Event, opts.EventBuffer),
		done:   make(chan struct{}),
	}
}

func (b *Backend) Events() <-chan backend.Event {
	return b.events
}

// Connect reports Connecting then Connected.
func (b *Backend) Connect(ctx context.Context) error {
	b.mu.Lock()
	already := b.connected
	b.connected = true
	b.mu.Unlock()
	if already {
		return nil
	}
	if err := b.Inject(ctx, backend.ConnectionStatusChanged{Status: status.Connecting, Reason: status.ReasonRequested}); err != nil {
		return err
	}
	return b.Inject(ctx, backend.ConnectionStatusChanged{Status: status.Connected, Reason: status.ReasonRequested})
}

// Disconnect reports Disconnected.
func (b *Backend) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	was := b.connected
	b.connected = false
	b.mu.Unlock()
	if !was {
		return nil
	}
	return b.Inject(ctx, backend.ConnectionStatusChanged{Status: status.Disconnected, Reason: status.ReasonRequested})
}

// Drop simulates the link going away underneath the connection.
func (b *Backend) Drop(ctx context.Context, reason status.Reason) error {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return b.Inject(ctx, backend.ConnectionStatusChanged{Status: status.Disconnected, Reason: reason})
}

func (b *Backend) SendMessage(ctx context.Context, identifier string, typ backend.MessageType, body string) (string, error) {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return "", fmt.Errorf("send to %s: %w", identifier, imerr.ErrBackendUnavailable)
	}
	token := uuid.NewString()
	b.sent = append(b.sent, Sent{Identifier: identifier, Type: typ, Body: body, Token: token})
	b.mu.Unlock()

	b.logger.Debug("loopback send", zap.String("to", identifier), zap.String("token", token))
	if err := b.Inject(ctx, backend.MessageSent{Identifier: identifier, Token: token}); err != nil {
		return "", err
	}
	if b.opts.Echo {
		if err := b.Inject(ctx, backend.MessageReceived{
			Identifier: identifier,
			Type:       typ,
			Body:       body,
			Timestamp:  time.Now(),
		}); err != nil {
			return "", err
		}
	}
	return token, nil
}

func (b *Backend) EditRoster(ctx context.Context, identifier string, op backend.RosterOp) error {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return fmt.Errorf("roster %s %s: %w", op, identifier, imerr.ErrBackendUnavailable)
	}
	b.edits = append(b.edits, Edit{Identifier: identifier, Op: op})
	b.mu.Unlock()

	if !b.opts.ConfirmRoster {
		return nil
	}
	item := backend.RosterItem{Identifier: identifier, Subscription: "none", Ask: "subscribe"}
	if op == backend.RosterRemove {
		item = backend.RosterItem{Identifier: identifier, Subscription: "remove"}
	}
	return b.Inject(ctx, backend.RosterPush{Items: []backend.RosterItem{item}})
}

// SetPresence records our own presence and reflects it back for SelfID.
func (b *Backend) SetPresence(ctx context.Context, st, message string) error {
	b.mu.Lock()
	b.presence = [2]string{st, message}
	connected := b.connected
	b.mu.Unlock()
	if !connected || b.opts.SelfID == "" {
		return nil
	}
	return b.Inject(ctx, backend.PresenceUpdate{Identifier: b.opts.SelfID, Status: st, Message: message})
}

// Inject places evt on the event stream, blocking until there is room, ctx
// is done or the backend is closed.
func (b *Backend) Inject(ctx context.Context, evt backend.Event) error {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		return errClosed
	}
	select {
	case b.events <- evt:
		return nil
	case <-b.done:
		return errClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errClosed = fmt.Errorf("loopback closed: %w", imerr.ErrBackendUnavailable)

// Close ends the event stream. Blocked Inject calls return first.
func (b *Backend) Close() {
	b.closeOnce.Do(func() { close(b.done) })
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
}

// Connected reports the simulated link state.
func (b *Backend) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Sends returns every recorded send.
func (b *Backend) Sends() []Sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.sent)
}

// Edits returns every recorded roster edit.
func (b *Backend) Edits() []Edit {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.edits)
}

// Presence returns the last presence set through SetPresence.
func (b *Backend) Presence() (string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presence[0], b.presence[1]
}
