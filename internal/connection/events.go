package connection

import (
	"github.com/matheus3301/imsm/internal/bus"
	"github.com/matheus3301/imsm/internal/channel"
	"github.com/matheus3301/imsm/internal/handle"
	"github.com/matheus3301/imsm/internal/presence"
	"github.com/matheus3301/imsm/internal/roster"
)

// Bus event kinds published by a connection. Connection status changes are
// published by the status machine as status.EventStatusChanged.
const (
	EventChannelNew          = "channel.new"
	EventChannelClosed       = "channel.closed"
	EventTextReceived        = "text.received"
	EventTextSent            = "text.sent"
	EventTextSendError       = "text.send_error"
	EventContactsChanged     = "contacts.changed"
	EventPresenceChanged     = "presence.changed"
	EventCapabilitiesChanged = "capabilities.changed"
)

// NewChannels is the payload of EventChannelNew.
type NewChannels struct {
	Channels []channel.Info
}

// ChannelClosed is the payload of EventChannelClosed.
type ChannelClosed struct {
	Channel channel.Info
}

// MessageReceived is the payload of EventTextReceived.
type MessageReceived struct {
	Channel channel.Info
	Message channel.Message
}

// Sent is the payload of EventTextSent and EventTextSendError.
type Sent struct {
	Path   string
	Target string
	Token  string
	Error  string
}

// ContactsChanged is the payload of EventContactsChanged.
type ContactsChanged struct {
	Added   []roster.Contact
	Changed []roster.Contact
	Removed []roster.Contact
}

// PresenceChanged is the payload of EventPresenceChanged.
type PresenceChanged struct {
	Handle     handle.Handle
	Identifier string
	Presence   presence.Presence
}

// CapabilitiesChanged is the payload of EventCapabilitiesChanged.
type CapabilitiesChanged struct {
	Handle       handle.Handle
	Identifier   string
	Capabilities []string
}

// publisher turns registry notifications into bus events.
type publisher struct {
	bus *bus.Bus
}

func (p publisher) publish(kind string, payload any) {
	p.bus.Emit(kind, payload)
}

func (p publisher) NewChannels(infos []channel.Info) {
	p.publish(EventChannelNew, NewChannels{Channels: infos})
}

func (p publisher) ChannelClosed(info channel.Info) {
	p.publish(EventChannelClosed, ChannelClosed{Channel: info})
}

func (p publisher) MessageReceived(info channel.Info, msg channel.Message) {
	p.publish(EventTextReceived, MessageReceived{Channel: info, Message: msg})
}
