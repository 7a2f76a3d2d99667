// Package wa is the WhatsApp backend. It drives a whatsmeow client and
// translates its events into the backend event stream.
package wa

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/bus"
	"github.com/matheus3301/imsm/internal/imerr"
	"github.com/matheus3301/imsm/internal/outbox"
	"github.com/matheus3301/imsm/internal/status"
	"github.com/matheus3301/imsm/internal/store"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// Options configures the WhatsApp backend.
type Options struct {
	// DeviceDBPath is the whatsmeow device store.
	DeviceDBPath string
	// DB holds the roster snapshot and the outbox.
	DB *store.DB
	// SendAttempts bounds delivery retries per message.
	SendAttempts int
	// EventBuffer sizes the event stream. Zero means 256.
	EventBuffer int
}

// Backend implements backend.Backend, backend.PresenceSetter and
// backend.Pairer over whatsmeow.
type Backend struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	db        *store.DB
	sender    *outbox.Sender
	bus       *bus.Bus
	logger    *zap.Logger
	handlerID uint32

	ctx    context.Context
	cancel context.CancelFunc
	events chan backend.Event

	mu          sync.Mutex
	connected   bool
	connectedAt time.Time

	closeMu sync.RWMutex
	closed  bool
}

func newBackend(db *store.DB, buffer int, b *bus.Bus, logger *zap.Logger) *Backend {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Backend{
		db:     db,
		bus:    b,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan backend.Event, buffer),
	}
}

// New opens the device store and starts the outbox. The client does not
// connect until Connect or Pair.
func New(ctx context.Context, opts Options, b *bus.Bus, logger *zap.Logger) (*Backend, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("imsm", [3]uint32{0, 1, 0})

	be := newBackend(opts.DB, opts.EventBuffer, b, logger)
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", opts.DeviceDBPath),
		newLog(be.logger.Named("store")),
	)
	if err != nil {
		be.cancel()
		return nil, fmt.Errorf("create device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		be.cancel()
		return nil, fmt.Errorf("get device store: %w", err)
	}

	be.container = container
	be.client = whatsmeow.NewClient(device, newLog(be.logger.Named("client")))
	be.handlerID = be.client.AddEventHandler(be.handle)
	be.sender = outbox.NewSender(opts.DB, be, opts.SendAttempts, be.sendResult, be.logger.Named("outbox"))
	be.sender.Start(be.ctx)
	return be, nil
}

func (b *Backend) Events() <-chan backend.Event {
	return b.events
}

// Paired reports whether the device store holds credentials.
func (b *Backend) Paired() bool {
	return b.client != nil && b.client.Store.ID != nil
}

// SelfID returns the paired account's identifier, or "" before pairing.
func (b *Backend) SelfID() string {
	if !b.Paired() {
		return ""
	}
	return b.client.Store.ID.ToNonAD().String()
}

// Connect opens the link. Connected is reported once whatsmeow has logged in.
func (b *Backend) Connect(ctx context.Context) error {
	if !b.Paired() {
		return fmt.Errorf("device not paired: %w", imerr.ErrBackendUnavailable)
	}
	if b.client.IsConnected() {
		return nil
	}
	b.logger.Info("connecting to WhatsApp")
	b.emit(backend.ConnectionStatusChanged{Status: status.Connecting, Reason: status.ReasonRequested})
	if err := b.client.Connect(); err != nil {
		b.emit(backend.ConnectionStatusChanged{Status: status.Disconnected, Reason: status.ReasonNetworkError})
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Disconnect closes the link. whatsmeow stays quiet about requested
// disconnects, so the status change is reported here.
func (b *Backend) Disconnect(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	b.logger.Info("disconnecting from WhatsApp")
	b.client.Disconnect()
	b.setConnected(false)
	b.emit(backend.ConnectionStatusChanged{Status: status.Disconnected, Reason: status.ReasonRequested})
	return nil
}

// SendMessage queues body in the outbox. The outcome arrives as a
// MessageSent event carrying the returned token.
func (b *Backend) SendMessage(ctx context.Context, identifier string, typ backend.MessageType, body string) (string, error) {
	if !b.isConnected() {
		return "", fmt.Errorf("send to %s: %w", identifier, imerr.ErrBackendUnavailable)
	}
	if _, err := types.ParseJID(identifier); err != nil {
		return "", fmt.Errorf("%w: %v", imerr.ErrInvalidArgument, err)
	}
	token := uuid.NewString()
	if err := b.sender.Enqueue(token, identifier, int(typ), body); err != nil {
		return "", fmt.Errorf("queue message: %w", err)
	}
	return token, nil
}

// Deliver performs one send attempt for the outbox.
func (b *Backend) Deliver(ctx context.Context, targetJID string, msgType int, body string) (string, error) {
	to, err := types.ParseJID(targetJID)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	resp, err := b.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(formatOutgoing(backend.MessageType(msgType), body)),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

func (b *Backend) sendResult(r outbox.Result) {
	b.emit(backend.MessageSent{Identifier: r.TargetJID, Token: r.ClientMsgID, Err: r.Err})
}

// EditRoster is not supported: WhatsApp contacts come from the phone's
// address book.
func (b *Backend) EditRoster(ctx context.Context, identifier string, op backend.RosterOp) error {
	return fmt.Errorf("roster %s %s: %w", op, identifier, imerr.ErrNotImplemented)
}

// SetPresence maps our status onto WhatsApp's available/unavailable.
// WhatsApp has no status messages, so message is ignored.
func (b *Backend) SetPresence(ctx context.Context, st, message string) error {
	p := types.PresenceUnavailable
	if st == "available" || st == "busy" {
		p = types.PresenceAvailable
	}
	if err := b.client.SendPresence(ctx, p); err != nil {
		return fmt.Errorf("send presence: %w", err)
	}
	return nil
}

// Close stops the outbox, drops the link and ends the event stream.
func (b *Backend) Close() {
	b.cancel()
	if b.sender != nil {
		b.sender.Stop()
	}
	if b.client != nil {
		b.client.RemoveEventHandler(b.handlerID)
		b.client.Disconnect()
	}

	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
}

// emit places evt on the event stream. It blocks while the stream is full
// and gives up once the backend is closed.
func (b *Backend) emit(evt backend.Event) {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.events <- evt:
	case <-b.ctx.Done():
	}
}

func (b *Backend) setConnected(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = v
	if v {
		b.connectedAt = time.Now()
	}
}

func (b *Backend) isConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// since returns when the current link came up.
func (b *Backend) since() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectedAt
}

// resolveLID maps a LID JID to its phone number JID using the device store.
// Anything else, or a failed lookup, is returned unchanged.
func (b *Backend) resolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if b.client == nil || b.client.Store == nil || b.client.Store.LIDs == nil {
		return jid
	}
	pn, err := b.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}
