// Package channel tracks the live channels of a connection and arbitrates
// requests to create them.
package channel

import (
	"fmt"
	"strconv"
	"time"

	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/handle"
	"github.com/matheus3301/imsm/internal/imerr"
)

// Kind is a channel type. Only text channels exist today.
type Kind string

const KindText Kind = "text"

// ParseKind validates a client-supplied channel type.
func ParseKind(s string) (Kind, error) {
	if Kind(s) == KindText {
		return KindText, nil
	}
	return "", fmt.Errorf("%w: channel type %q", imerr.ErrNotImplemented, s)
}

// Key identifies a channel: at most one live record exists per key.
type Key struct {
	Kind   Kind
	Target handle.Handle
}

// State is the lifecycle state of a record.
type State int

const (
	Open State = iota
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Message is a received message waiting for acknowledgement.
type Message struct {
	ID        uint32
	Timestamp time.Time
	Sender    handle.Handle
	SenderID  string
	Type      backend.MessageType
	Flags     backend.MessageFlags
	Body      string
}

// Info is a point-in-time copy of a record's properties.
type Info struct {
	Path        string
	Serial      uint64
	Kind        Kind
	Target      handle.Handle
	TargetID    string
	Requested   bool
	Initiator   handle.Handle
	InitiatorID string
	CreatedAt   time.Time
	State       State
	Pending     int
}

// Record is one channel. Records are only touched from the connection's
// dispatcher; callers outside it work with Info snapshots.
type Record struct {
	key         Key
	path        string
	serial      uint64
	requested   bool
	initiator   handle.Handle
	initiatorID string
	targetID    string
	createdAt   time.Time
	state       State
	text        *Text
}

func (r *Record) Key() Key       { return r.key }
func (r *Record) Path() string   { return r.path }
func (r *Record) Serial() uint64 { return r.serial }
func (r *Record) State() State   { return r.state }
func (r *Record) Text() *Text    { return r.text }

// Info snapshots the record.
func (r *Record) Info() Info {
	return Info{
		Path:        r.path,
		Serial:      r.serial,
		Kind:        r.key.Kind,
		Target:      r.key.Target,
		TargetID:    r.targetID,
		Requested:   r.requested,
		Initiator:   r.initiator,
		InitiatorID: r.initiatorID,
		CreatedAt:   r.createdAt,
		State:       r.state,
		Pending:     len(r.text.pending),
	}
}

// PathFor returns the object path of the channel for key under base.
func PathFor(base string, key Key) string {
	return base + "/ImChannel" + strconv.FormatUint(uint64(key.Target), 10)
}
