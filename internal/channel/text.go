package channel

import (
	"fmt"
	"slices"
	"time"

	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/handle"
	"github.com/matheus3301/imsm/internal/imerr"
	"go.uber.org/zap"
)

// Text is the pending-message queue of a text channel. Message ids are
// allocated per queue and survive a respawn along with the queue.
type Text struct {
	pending []Message
	nextID  uint32
}

func newText() *Text {
	return &Text{}
}

// Pending returns the queue oldest first.
func (t *Text) Pending() []Message {
	return slices.Clone(t.pending)
}

func (t *Text) push(m Message) Message {
	m.ID = t.nextID
	t.nextID++
	t.pending = append(t.pending, m)
	return m
}

// ack removes the named messages and returns the ones it removed. Unknown ids
// are ignored.
func (t *Text) ack(ids []uint32) []Message {
	var removed []Message
	t.pending = slices.DeleteFunc(t.pending, func(m Message) bool {
		if slices.Contains(ids, m.ID) {
			removed = append(removed, m)
			return true
		}
		return false
	})
	return removed
}

func (t *Text) rescue() {
	for i := range t.pending {
		t.pending[i].Flags |= backend.FlagRescued
	}
}

func (t *Text) discard(handles *handle.Registry) {
	for _, m := range t.pending {
		_ = handles.Release(m.Sender)
	}
	t.pending = nil
}

// Deliver queues an incoming message on the text channel with sender, making
// the channel first if needed. A channel caught mid-close is respawned.
func (g *Registry) Deliver(sender handle.Handle, typ backend.MessageType, flags backend.MessageFlags, body string, ts time.Time) (Info, Message, error) {
	r, err := g.NotifyUnsolicited(Key{Kind: KindText, Target: sender}, sender)
	if err != nil {
		return Info{}, Message{}, err
	}
	if ts.IsZero() {
		ts = g.now()
	}
	senderID, _ := g.handles.Resolve(sender)
	_ = g.handles.Retain(sender)
	msg := r.text.push(Message{
		Timestamp: ts,
		Sender:    sender,
		SenderID:  senderID,
		Type:      typ,
		Flags:     flags,
		Body:      body,
	})
	g.logger.Debug("message queued",
		zap.String("path", r.path), zap.Uint32("id", msg.ID), zap.Stringer("type", typ))

	if r.state == Closing {
		r = g.respawn(r)
		msg = r.text.pending[len(r.text.pending)-1]
	}
	g.notifier.MessageReceived(r.Info(), msg)
	return r.Info(), msg, nil
}

// Acknowledge drops the named pending messages from the channel at path.
// Ids that are unknown or already acknowledged are ignored. If the channel
// was waiting to close, an empty queue lets it close now.
func (g *Registry) Acknowledge(path string, ids []uint32) error {
	r, err := g.Lookup(path)
	if err != nil {
		return err
	}
	for _, m := range r.text.ack(ids) {
		_ = g.handles.Release(m.Sender)
	}
	if r.state == Closing && len(r.text.pending) == 0 {
		g.finish(r)
	}
	return nil
}

// ListPending returns the channel's queue oldest first without consuming it.
func (g *Registry) ListPending(path string) ([]Message, error) {
	r, err := g.Lookup(path)
	if err != nil {
		return nil, err
	}
	return r.text.Pending(), nil
}

// PrepareSend checks that a message of type typ may go out on the channel at
// path and returns the channel's properties. The send itself is done by the
// caller.
func (g *Registry) PrepareSend(path string, typ backend.MessageType) (Info, error) {
	if !typ.Sendable() {
		return Info{}, fmt.Errorf("%w: cannot send message type %s", imerr.ErrInvalidArgument, typ)
	}
	r, err := g.Lookup(path)
	if err != nil {
		return Info{}, err
	}
	if r.state != Open {
		return Info{}, fmt.Errorf("%w: %s is %s", imerr.ErrNoSuchChannel, path, r.state)
	}
	return r.Info(), nil
}
