package connection

import (
	"context"

	"github.com/matheus3301/imsm/internal/dispatch"
	"github.com/matheus3301/imsm/internal/handle"
	"github.com/matheus3301/imsm/internal/presence"
	"github.com/matheus3301/imsm/internal/roster"
)

// Contact attribute interfaces. contact-id is always returned.
const (
	InterfaceContactID    = "contact-id"
	InterfaceAlias        = "alias"
	InterfacePresence     = "presence"
	InterfaceCapabilities = "capabilities"
	InterfaceRoster       = "roster"
)

// RosterAttributes is the roster view of a contact.
type RosterAttributes struct {
	Subscription roster.Subscription
	AskPending   bool
	InRoster     bool
}

// Attributes holds the requested attributes of one contact. Fields of
// interfaces that were not asked for are left empty.
type Attributes struct {
	Handle       handle.Handle
	ContactID    string
	Alias        string
	Presence     *presence.Presence
	Capabilities []string
	Roster       *RosterAttributes
}

// GetContactAttributes returns attributes for every handle that resolves.
// Handles that do not are left out of the result. Unknown interface names are
// ignored.
func (c *Connection) GetContactAttributes(ctx context.Context, hs []handle.Handle, interfaces []string) (map[handle.Handle]Attributes, error) {
	want := make(map[string]bool, len(interfaces))
	for _, i := range interfaces {
		want[i] = true
	}
	return dispatch.Call(ctx, c.disp, func() (map[handle.Handle]Attributes, error) {
		out := make(map[handle.Handle]Attributes, len(hs))
		for _, h := range hs {
			id, err := c.handles.Resolve(h)
			if err != nil {
				continue
			}
			a := Attributes{Handle: h, ContactID: id}
			contact, known := c.roster.Get(h)
			if want[InterfaceAlias] {
				a.Alias = id
				if known && contact.Alias != "" {
					a.Alias = contact.Alias
				}
			}
			if want[InterfacePresence] {
				p := c.presence.Get(h)
				a.Presence = &p
			}
			if want[InterfaceCapabilities] {
				a.Capabilities = c.presence.Capabilities(h)
			}
			if want[InterfaceRoster] {
				ra := RosterAttributes{Subscription: roster.SubscriptionNone}
				if known {
					ra = RosterAttributes{
						Subscription: contact.Subscription,
						AskPending:   contact.AskPending,
						InRoster:     contact.InRoster,
					}
				}
				a.Roster = &ra
			}
			out[h] = a
		}
		return out, nil
	})
}
