package rpc

import (
	"time"

	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/channel"
	"github.com/matheus3301/imsm/internal/connection"
	"github.com/matheus3301/imsm/internal/handle"
	"github.com/matheus3301/imsm/internal/roster"
)

// Empty is used by calls that take or return nothing.
type Empty struct{}

// Status describes the daemon and its connection.
type Status struct {
	Account    string        `cbor:"account"`
	Backend    string        `cbor:"backend"`
	Status     string        `cbor:"status"`
	Reason     string        `cbor:"reason"`
	SelfHandle handle.Handle `cbor:"self_handle"`
	SelfID     string        `cbor:"self_id"`
	UptimeMs   int64         `cbor:"uptime_ms"`
}

type HandlesRequest struct {
	Identifiers []string `cbor:"identifiers"`
}

type HandlesReply struct {
	Handles []handle.Handle `cbor:"handles"`
}

type InspectRequest struct {
	Handles []handle.Handle `cbor:"handles"`
}

type InspectReply struct {
	Identifiers []string `cbor:"identifiers"`
}

type AttributesRequest struct {
	Handles    []handle.Handle `cbor:"handles"`
	Interfaces []string        `cbor:"interfaces"`
}

// AttributesReply lists contacts ordered by handle.
type AttributesReply struct {
	Contacts []connection.Attributes `cbor:"contacts"`
}

type PresenceRequest struct {
	Status  string `cbor:"status"`
	Message string `cbor:"message,omitempty"`
}

// ContactsRequest names contacts by identifier for AddContacts and by
// handle for RemoveContacts.
type ContactsRequest struct {
	Identifiers []string        `cbor:"identifiers,omitempty"`
	Handles     []handle.Handle `cbor:"handles,omitempty"`
}

type ContactsReply struct {
	Contacts []roster.Contact `cbor:"contacts"`
}

type ChannelRequest struct {
	Kind     string        `cbor:"kind"`
	Target   handle.Handle `cbor:"target,omitempty"`
	TargetID string        `cbor:"target_id,omitempty"`
}

type ChannelReply struct {
	Channel channel.Info `cbor:"channel"`
	// Created is false when EnsureChannel returned an existing channel.
	Created bool `cbor:"created"`
}

type ChannelsReply struct {
	Channels []channel.Info `cbor:"channels"`
}

type PathRequest struct {
	Path string `cbor:"path"`
}

type SendRequest struct {
	Path string              `cbor:"path"`
	Type backend.MessageType `cbor:"type"`
	Body string              `cbor:"body"`
}

type SendReply struct {
	Token string `cbor:"token"`
}

type AckRequest struct {
	Path string   `cbor:"path"`
	IDs  []uint32 `cbor:"ids"`
}

type PendingReply struct {
	Messages []channel.Message `cbor:"messages"`
}

// WatchRequest filters the event stream by kind prefix. An empty prefix
// receives everything.
type WatchRequest struct {
	Prefix string `cbor:"prefix,omitempty"`
}

// Event is one bus event. Payload holds the encoded payload struct of the
// kind, e.g. connection.NewChannels for channel.new. Seq is the daemon-wide
// sequence number; a gap means the watcher missed events.
type Event struct {
	ID        string     `cbor:"id"`
	Seq       uint64     `cbor:"seq"`
	Account   string     `cbor:"account"`
	Kind      string     `cbor:"kind"`
	Timestamp time.Time  `cbor:"ts"`
	Payload   RawMessage `cbor:"payload,omitempty"`
}

// Decode unpacks the payload into v.
func (e *Event) Decode(v any) error {
	return decMode.Unmarshal(e.Payload, v)
}

// Fields unpacks the payload without knowing its type. Maps come back as
// map[string]any.
func (e *Event) Fields() (any, error) {
	if len(e.Payload) == 0 {
		return nil, nil
	}
	var v any
	if err := mapMode.Unmarshal(e.Payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodePayload encodes an event payload for an Event.
func EncodePayload(v any) (RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return encMode.Marshal(v)
}
