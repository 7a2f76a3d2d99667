// Package outbox is the WhatsApp backend's delivery queue. Sends are stored
// first and drained by a background loop that retries failed attempts.
package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/imsm/internal/store"
	"go.uber.org/zap"
)

// Transport performs one delivery attempt.
type Transport interface {
	Deliver(ctx context.Context, targetJID string, msgType int, body string) (serverMsgID string, err error)
}

// Result is the final outcome of a queued message.
type Result struct {
	ClientMsgID string
	TargetJID   string
	ServerMsgID string
	Err         error
}

// Sender drains the outbox through a Transport.
type Sender struct {
	db        *store.DB
	transport Transport
	attempts  int
	onResult  func(Result)
	logger    *zap.Logger
	interval  time.Duration

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSender creates a new outbox sender. Each message is tried up to
// attempts times; onResult is called once per message with its final
// outcome.
func NewSender(db *store.DB, transport Transport, attempts int, onResult func(Result), logger *zap.Logger) *Sender {
	if attempts < 1 {
		attempts = 1
	}
	if onResult == nil {
		onResult = func(Result) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:        db,
		transport: transport,
		attempts:  attempts,
		onResult:  onResult,
		logger:    logger,
		interval:  500 * time.Millisecond,
		wake:      make(chan struct{}, 1),
	}
}

// Enqueue stores a message for delivery and wakes the loop.
func (s *Sender) Enqueue(clientMsgID, targetJID string, msgType int, body string) error {
	if err := s.db.QueueOutbox(clientMsgID, targetJID, msgType, body); err != nil {
		return err
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Start begins draining the outbox. Entries a previous run left in flight
// are queued again first.
func (s *Sender) Start(ctx context.Context) {
	if n, err := s.db.RecoverOutbox(); err != nil {
		s.logger.Error("failed to recover outbox", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("requeued interrupted sends", zap.Int64("count", n))
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sender loop and waits for it to exit.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-s.wake:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}
		attempt := entry.Attempts + 1

		serverMsgID, err := s.transport.Deliver(ctx, entry.TargetJID, entry.MsgType, entry.Body)
		if err != nil {
			if attempt < s.attempts && !errors.Is(err, context.Canceled) {
				s.logger.Warn("send attempt failed, will retry",
					zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID), zap.Int("attempt", attempt))
				_ = s.db.RequeueOutbox(entry.ClientMsgID, err.Error())
				continue
			}
			s.logger.Error("failed to send message",
				zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID), zap.Int("attempt", attempt))
			_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			s.onResult(Result{ClientMsgID: entry.ClientMsgID, TargetJID: entry.TargetJID, Err: err})
			continue
		}

		if err := s.db.MarkOutboxSent(entry.ClientMsgID, serverMsgID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}
		s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("server_msg_id", serverMsgID))
		s.onResult(Result{ClientMsgID: entry.ClientMsgID, TargetJID: entry.TargetJID, ServerMsgID: serverMsgID})
	}
}
