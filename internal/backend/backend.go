// Package backend defines the boundary between the connection core and the
// protocol engine that does the actual wire work.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/imsm/internal/imerr"
	"github.com/matheus3301/imsm/internal/status"
)

// MessageType classifies a text message.
type MessageType uint32

const (
	MessageNormal MessageType = iota
	MessageAction
	MessageNotice
	MessageAutoReply
	MessageDeliveryReport
)

func (t MessageType) String() string {
	switch t {
	case MessageNormal:
		return "normal"
	case MessageAction:
		return "action"
	case MessageNotice:
		return "notice"
	case MessageAutoReply:
		return "auto-reply"
	case MessageDeliveryReport:
		return "delivery-report"
	default:
		return "unknown"
	}
}

// ParseMessageType is the inverse of MessageType.String.
func ParseMessageType(s string) (MessageType, error) {
	for t := MessageNormal; t <= MessageDeliveryReport; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: message type %q", imerr.ErrInvalidArgument, s)
}

// Sendable reports whether clients may send messages of this type.
func (t MessageType) Sendable() bool {
	return t <= MessageAutoReply
}

// MessageFlags annotate a received message.
type MessageFlags uint32

const (
	FlagTruncated  MessageFlags = 1
	FlagNonText    MessageFlags = 2
	FlagScrollback MessageFlags = 4
	// FlagRescued marks a message that outlived the channel it arrived on.
	FlagRescued MessageFlags = 8
)

// RosterOp is a roster edit forwarded to the backend.
type RosterOp int

const (
	RosterAdd RosterOp = iota
	RosterRemove
)

func (op RosterOp) String() string {
	if op == RosterRemove {
		return "remove"
	}
	return "add"
}

// Event is one item of the backend's event stream. The set of event types is
// closed; see the types below.
type Event interface {
	backendEvent()
}

// RosterItem is a single entry of a roster push as the protocol reports it.
// Subscription is one of none, from, to, both or remove.
type RosterItem struct {
	Identifier   string
	Subscription string
	Ask          string
	Alias        string
}

// RosterPush carries one logical roster update.
type RosterPush struct {
	Items []RosterItem
}

// PresenceUpdate reports a contact's status. Status uses the presence
// package's status names; unknown names map to "unknown".
type PresenceUpdate struct {
	Identifier string
	Status     string
	Message    string
}

// CapabilityUpdate replaces a contact's capability set.
type CapabilityUpdate struct {
	Identifier   string
	Capabilities []string
}

// MessageReceived is an inbound text message.
type MessageReceived struct {
	Identifier string
	Type       MessageType
	Flags      MessageFlags
	Body       string
	Timestamp  time.Time
}

// ConnectionStatusChanged reports the backend's link status.
type ConnectionStatusChanged struct {
	Status status.State
	Reason status.Reason
}

// MessageSent reports the final delivery outcome of a SendMessage call.
type MessageSent struct {
	Identifier string
	Token      string
	Err        error
}

func (RosterPush) backendEvent()              {}
func (PresenceUpdate) backendEvent()          {}
func (CapabilityUpdate) backendEvent()        {}
func (MessageReceived) backendEvent()         {}
func (ConnectionStatusChanged) backendEvent() {}
func (MessageSent) backendEvent()             {}

// Backend is a protocol engine.
type Backend interface {
	// Events returns the stream the dispatcher drains. It is closed when the
	// backend shuts down.
	Events() <-chan Event

	// Connect starts connecting; progress is reported through
	// ConnectionStatusChanged events.
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// SendMessage hands a message to the protocol. The returned token is
	// echoed back in the matching MessageSent event. It fails with
	// imerr.ErrBackendUnavailable while disconnected.
	SendMessage(ctx context.Context, identifier string, typ MessageType, body string) (token string, err error)

	// EditRoster forwards a local roster edit. Local state only changes once
	// the backend confirms it with a RosterPush.
	EditRoster(ctx context.Context, identifier string, op RosterOp) error
}

// PresenceSetter is implemented by backends that can publish the user's own
// presence.
type PresenceSetter interface {
	SetPresence(ctx context.Context, status, message string) error
}

// Pairing event types.
const (
	PairingCode    = "code"
	PairingSuccess = "success"
	PairingTimeout = "timeout"
	PairingError   = "error"
)

// PairingEvent is one step of an interactive pairing flow.
type PairingEvent struct {
	Type    string
	Code    string
	Message string
}

// Pairer is implemented by backends that need interactive device pairing.
type Pairer interface {
	Pair(ctx context.Context) (<-chan PairingEvent, error)
}
