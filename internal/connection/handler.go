package connection

import (
	"errors"
	"fmt"

	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/channel"
	"github.com/matheus3301/imsm/internal/handle"
	"github.com/matheus3301/imsm/internal/imerr"
	"github.com/matheus3301/imsm/internal/status"
	"go.uber.org/zap"
)

// HandleEvent applies one backend event. It runs on the dispatcher.
func (c *Connection) HandleEvent(evt backend.Event) {
	switch e := evt.(type) {
	case backend.RosterPush:
		change := c.roster.ApplyPush(e.Items)
		if change.Empty() {
			return
		}
		publisher{bus: c.bus}.publish(EventContactsChanged, ContactsChanged{
			Added:   change.Added,
			Changed: change.Changed,
			Removed: change.Removed,
		})
		for _, removed := range change.Removed {
			c.forgetPresence(removed.Handle)
		}

	case backend.PresenceUpdate:
		h, ok := c.contact(e.Identifier, "presence")
		if !ok {
			return
		}
		c.updatePresence(h, e.Status, e.Message)

	case backend.CapabilityUpdate:
		h, ok := c.contact(e.Identifier, "capabilities")
		if !ok {
			return
		}
		if c.presence.SetCapabilities(h, e.Capabilities) {
			id, _ := c.handles.Resolve(h)
			publisher{bus: c.bus}.publish(EventCapabilitiesChanged, CapabilitiesChanged{
				Handle:       h,
				Identifier:   id,
				Capabilities: c.presence.Capabilities(h),
			})
		}

	case backend.MessageReceived:
		h, ok := c.contact(e.Identifier, "message")
		if !ok {
			return
		}
		if _, _, err := c.channels.Deliver(h, e.Type, e.Flags, e.Body, e.Timestamp); err != nil {
			c.logger.Warn("dropping incoming message", zap.String("from", e.Identifier), zap.Error(err))
		}

	case backend.MessageSent:
		c.messageSent(e)

	case backend.ConnectionStatusChanged:
		c.statusChanged(e.Status, e.Reason)

	default:
		c.logger.Warn("unhandled backend event", zap.String("type", fmt.Sprintf("%T", evt)))
	}
}

// contact interns the identifier of a backend event and registers it with
// the roster so the handle stays valid for as long as state refers to it.
func (c *Connection) contact(identifier, what string) (handle.Handle, bool) {
	h, err := c.handles.Intern(identifier)
	if err != nil {
		c.logger.Warn("skipping backend event",
			zap.String("event", what),
			zap.Error(errors.Join(imerr.ErrProtocolInconsistency, err)))
		return handle.None, false
	}
	c.roster.Touch(h)
	return h, true
}

func (c *Connection) updatePresence(h handle.Handle, st, message string) {
	p, changed := c.presence.Update(h, st, message)
	if !changed {
		return
	}
	id, _ := c.handles.Resolve(h)
	publisher{bus: c.bus}.publish(EventPresenceChanged, PresenceChanged{
		Handle:     h,
		Identifier: id,
		Presence:   p,
	})
}

// forgetPresence drops what is known about a contact that left the roster.
// A contact with a live text channel keeps it.
func (c *Connection) forgetPresence(h handle.Handle) {
	if _, ok := c.channels.Get(channel.Key{Kind: channel.KindText, Target: h}); ok {
		return
	}
	if !c.presence.Forget(h) {
		return
	}
	id, _ := c.handles.Resolve(h)
	publisher{bus: c.bus}.publish(EventPresenceChanged, PresenceChanged{
		Handle:     h,
		Identifier: id,
		Presence:   c.presence.Get(h),
	})
}

func (c *Connection) messageSent(e backend.MessageSent) {
	evt := Sent{Target: e.Identifier, Token: e.Token}
	if h, ok := c.handles.Lookup(e.Identifier); ok {
		evt.Target, _ = c.handles.Resolve(h)
		if r, ok := c.channels.Get(channel.Key{Kind: channel.KindText, Target: h}); ok {
			evt.Path = r.Path()
		}
	}
	kind := EventTextSent
	if e.Err != nil {
		kind = EventTextSendError
		evt.Error = e.Err.Error()
		c.logger.Warn("message delivery failed", zap.String("to", e.Identifier), zap.String("token", e.Token), zap.Error(e.Err))
	}
	publisher{bus: c.bus}.publish(kind, evt)
}

// statusChanged follows the backend's link state. A backend that reconnects
// on its own may skip Connecting; the machine is walked through it.
func (c *Connection) statusChanged(to status.State, reason status.Reason) {
	cur := c.status.Current()
	if cur == to {
		return
	}
	if to == status.Connected && cur == status.Disconnected {
		_ = c.status.Transition(status.Connecting, reason)
	}
	if err := c.status.Transition(to, reason); err != nil {
		c.logger.Warn("ignoring status change", zap.Error(errors.Join(imerr.ErrProtocolInconsistency, err)))
		return
	}
	c.logger.Info("connection status", zap.String("status", string(to)), zap.String("reason", string(reason)))
	if to == status.Disconnected {
		c.channels.CloseAll()
		c.presence.Reset()
	}
}
