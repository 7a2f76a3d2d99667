// Package presence caches contact presence and capabilities as reported by
// the backend. Clients only read it through contact attributes.
package presence

import (
	"fmt"
	"slices"

	"github.com/matheus3301/imsm/internal/handle"
	"github.com/matheus3301/imsm/internal/imerr"
)

// Type is the coarse presence class a status belongs to.
type Type uint32

const (
	TypeUnset Type = iota
	TypeOffline
	TypeAvailable
	TypeAway
	TypeExtendedAway
	TypeHidden
	TypeBusy
	TypeUnknown
)

// Status names.
const (
	StatusAvailable = "available"
	StatusBusy      = "busy"
	StatusAway      = "away"
	StatusXA        = "xa"
	StatusHidden    = "hidden"
	StatusOffline   = "offline"
	StatusUnknown   = "unknown"
)

type statusSpec struct {
	typ      Type
	settable bool
}

var statuses = map[string]statusSpec{
	StatusAvailable: {TypeAvailable, true},
	StatusBusy:      {TypeBusy, true},
	StatusAway:      {TypeAway, true},
	StatusXA:        {TypeExtendedAway, true},
	StatusHidden:    {TypeHidden, true},
	StatusOffline:   {TypeOffline, false},
	StatusUnknown:   {TypeUnknown, false},
}

// TypeOf returns the presence type of a status name; unknown names map to
// TypeUnknown.
func TypeOf(status string) Type {
	if s, ok := statuses[status]; ok {
		return s.typ
	}
	return TypeUnknown
}

// Settable reports whether the user may set their own presence to status.
func Settable(status string) bool {
	return statuses[status].settable
}

// ValidateSettable returns ErrInvalidArgument for statuses the user cannot
// select.
func ValidateSettable(status string) error {
	if !Settable(status) {
		return fmt.Errorf("%w: presence status %q cannot be set", imerr.ErrInvalidArgument, status)
	}
	return nil
}

// CapabilityText is the requestable channel class every contact supports by
// default.
const CapabilityText = "text"

// Presence is one contact's presence snapshot.
type Presence struct {
	Type    Type
	Status  string
	Message string
}

var unknown = Presence{Type: TypeUnknown, Status: StatusUnknown}

// Cache holds presence and capabilities per handle. It is owned by the
// connection's dispatcher.
type Cache struct {
	presence map[handle.Handle]Presence
	caps     map[handle.Handle][]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		presence: make(map[handle.Handle]Presence),
		caps:     make(map[handle.Handle][]string),
	}
}

// Update stores a backend presence report. It returns the stored value and
// whether it differs from the previous one.
func (c *Cache) Update(h handle.Handle, status, message string) (Presence, bool) {
	if _, ok := statuses[status]; !ok {
		status = StatusUnknown
	}
	p := Presence{Type: TypeOf(status), Status: status, Message: message}
	old, had := c.presence[h]
	c.presence[h] = p
	return p, !had || old != p
}

// Get returns the presence for h. A contact that was never seen reports
// unknown. The same holds for the zero handle.
func (c *Cache) Get(h handle.Handle) Presence {
	if p, ok := c.presence[h]; ok {
		return p
	}
	return unknown
}

// SetCapabilities replaces the capability set of h and reports whether it
// changed.
func (c *Cache) SetCapabilities(h handle.Handle, caps []string) bool {
	next := slices.Clone(caps)
	slices.Sort(next)
	next = slices.Compact(next)
	old, had := c.caps[h]
	c.caps[h] = next
	return !had || !slices.Equal(old, next)
}

// Capabilities returns the capability set of h. Contacts the backend has not
// described advertise text only; the zero handle advertises nothing.
func (c *Cache) Capabilities(h handle.Handle) []string {
	if h == handle.None {
		return nil
	}
	if caps, ok := c.caps[h]; ok {
		return slices.Clone(caps)
	}
	return []string{CapabilityText}
}

// Forget drops everything known about h, so it reads as unknown again. It
// reports whether a presence report was dropped.
func (c *Cache) Forget(h handle.Handle) bool {
	_, had := c.presence[h]
	delete(c.presence, h)
	delete(c.caps, h)
	return had
}

// Reset clears every entry. The connection calls it on disconnect.
func (c *Cache) Reset() {
	clear(c.presence)
	clear(c.caps)
}
