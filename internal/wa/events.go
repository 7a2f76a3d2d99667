package wa

import (
	"time"

	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/status"
	"github.com/matheus3301/imsm/internal/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// EventLoggedOut is published on the bus when the phone unlinks this device.
const EventLoggedOut = "pairing.logged_out"

// handle translates one whatsmeow event. whatsmeow calls it from its own
// goroutines.
func (b *Backend) handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		b.handleMessage(evt)

	case *events.Presence:
		jid := b.resolveLID(b.ctx, evt.From.ToNonAD())
		p := backend.PresenceUpdate{Identifier: jid.String(), Status: "available"}
		if evt.Unavailable {
			p.Status = "offline"
			if !evt.LastSeen.IsZero() {
				p.Message = "last seen " + evt.LastSeen.Format(time.RFC3339)
			}
		}
		b.emit(p)

	case *events.Contact:
		jid := b.resolveLID(b.ctx, evt.JID.ToNonAD())
		if jid.Server != types.DefaultUserServer {
			return
		}
		c := store.Contact{JID: jid.String(), Name: evt.Action.GetFullName()}
		if prev, err := b.lookupContact(c.JID); err == nil && prev != nil {
			c.PushName = prev.PushName
		}
		b.saveContact(c)
		b.emit(backend.RosterPush{Items: []backend.RosterItem{
			{Identifier: c.JID, Subscription: "both", Alias: c.DisplayName()},
		}})

	case *events.PushName:
		jid := b.resolveLID(b.ctx, evt.JID.ToNonAD())
		prev, err := b.lookupContact(jid.String())
		if err != nil || prev == nil {
			return
		}
		c := *prev
		c.PushName = evt.NewPushName
		b.saveContact(c)
		if c.Name == "" {
			b.emit(backend.RosterPush{Items: []backend.RosterItem{
				{Identifier: c.JID, Subscription: "both", Alias: c.DisplayName()},
			}})
		}

	case *events.Connected:
		b.logger.Info("WhatsApp connected")
		b.setConnected(true)
		b.emit(backend.ConnectionStatusChanged{Status: status.Connected, Reason: status.ReasonRequested})
		if b.client != nil {
			go b.syncRoster(b.ctx)
		}

	case *events.Disconnected:
		b.logger.Warn("WhatsApp disconnected")
		b.setConnected(false)
		b.emit(backend.ConnectionStatusChanged{Status: status.Disconnected, Reason: status.ReasonNetworkError})

	case *events.StreamReplaced:
		b.logger.Warn("WhatsApp stream replaced by another client")
		b.setConnected(false)
		b.emit(backend.ConnectionStatusChanged{Status: status.Disconnected, Reason: status.ReasonNameInUse})

	case *events.TemporaryBan:
		b.logger.Warn("WhatsApp account temporarily banned", zap.Any("ban", evt))
		b.setConnected(false)
		b.emit(backend.ConnectionStatusChanged{Status: status.Disconnected, Reason: status.ReasonAuthFailed})

	case *events.LoggedOut:
		b.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		b.setConnected(false)
		b.emit(backend.ConnectionStatusChanged{Status: status.Disconnected, Reason: status.ReasonLoggedOut})
		if b.bus != nil {
			b.bus.Emit(EventLoggedOut, evt.Reason.String())
		}
	}
}

// handleMessage reports one-to-one incoming messages. Our own messages from
// other devices, group chats and broadcasts have no channel here.
func (b *Backend) handleMessage(evt *events.Message) {
	info := evt.Info
	if info.IsFromMe || info.IsGroup || info.Chat.Server == types.BroadcastServer {
		return
	}
	typ, flags, body, ok := parseIncoming(evt.Message)
	if !ok {
		b.logger.Debug("skipping message without text", zap.String("id", info.ID))
		return
	}
	if since := b.since(); !since.IsZero() && info.Timestamp.Before(since) {
		flags |= backend.FlagScrollback
	}
	sender := b.resolveLID(b.ctx, info.Sender.ToNonAD())
	b.emit(backend.MessageReceived{
		Identifier: sender.String(),
		Type:       typ,
		Flags:      flags,
		Body:       body,
		Timestamp:  info.Timestamp,
	})
}

func (b *Backend) lookupContact(jid string) (*store.Contact, error) {
	if b.db == nil {
		return nil, nil
	}
	return b.db.GetContact(jid)
}

func (b *Backend) saveContact(c store.Contact) {
	if b.db == nil {
		return
	}
	if err := b.db.UpsertContact(c); err != nil {
		b.logger.Warn("failed to store contact", zap.String("jid", c.JID), zap.Error(err))
	}
}
