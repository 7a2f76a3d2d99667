// Package roster mirrors the backend's contact list. It is a projection of
// backend-confirmed state only: local edits are forwarded and take effect
// when the backend pushes them back.
package roster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/handle"
	"github.com/matheus3301/imsm/internal/imerr"
	"go.uber.org/zap"
)

// Subscription is the presence subscription state of a roster item.
type Subscription string

const (
	SubscriptionNone Subscription = "none"
	SubscriptionFrom Subscription = "from"
	SubscriptionTo   Subscription = "to"
	SubscriptionBoth Subscription = "both"

	subscriptionRemove = "remove"
)

// Contact is one roster entry. Entries are never deleted; a removed contact
// keeps its handle and is only marked absent.
type Contact struct {
	Handle       handle.Handle
	Identifier   string
	Subscription Subscription
	AskPending   bool
	Alias        string
	InRoster     bool
}

// Subscribed reports whether we receive the contact's presence.
func (c Contact) Subscribed() bool {
	return c.Subscription == SubscriptionTo || c.Subscription == SubscriptionBoth
}

// Published reports whether the contact receives our presence.
func (c Contact) Published() bool {
	return c.Subscription == SubscriptionFrom || c.Subscription == SubscriptionBoth
}

// Change is the aggregated result of one roster push.
type Change struct {
	Added   []Contact
	Changed []Contact
	Removed []Contact
}

// Empty reports whether the change carries nothing.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}

// Editor forwards roster edits to the backend.
type Editor interface {
	EditRoster(ctx context.Context, identifier string, op backend.RosterOp) error
}

// Store is the per-connection contact table. Like the handle registry it is
// owned by the connection's dispatcher.
type Store struct {
	handles  *handle.Registry
	editor   Editor
	logger   *zap.Logger
	contacts map[handle.Handle]*Contact
}

// NewStore creates an empty roster.
func NewStore(handles *handle.Registry, editor Editor, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		handles:  handles,
		editor:   editor,
		logger:   logger,
		contacts: make(map[handle.Handle]*Contact),
	}
}

// ApplyPush folds one backend roster push into the table. Malformed items are
// logged and skipped without affecting the rest of the push.
func (s *Store) ApplyPush(items []backend.RosterItem) Change {
	var change Change
	for _, item := range items {
		c, wasPresent, err := s.apply(item)
		if err != nil {
			s.logger.Warn("skipping roster item",
				zap.String("identifier", item.Identifier),
				zap.String("subscription", item.Subscription),
				zap.Error(err))
			continue
		}
		switch {
		case !c.InRoster:
			change.Removed = append(change.Removed, *c)
		case wasPresent:
			change.Changed = append(change.Changed, *c)
		default:
			change.Added = append(change.Added, *c)
		}
	}
	return change
}

func (s *Store) apply(item backend.RosterItem) (*Contact, bool, error) {
	remove := item.Subscription == subscriptionRemove
	sub := Subscription(item.Subscription)
	if !remove {
		switch sub {
		case SubscriptionNone, SubscriptionFrom, SubscriptionTo, SubscriptionBoth:
		case "":
			sub = SubscriptionNone
		default:
			return nil, false, fmt.Errorf("%w: subscription %q", imerr.ErrProtocolInconsistency, item.Subscription)
		}
	}

	h, err := s.handles.Intern(item.Identifier)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", imerr.ErrProtocolInconsistency, err)
	}
	c := s.entry(h)
	wasPresent := c.InRoster

	if remove {
		// subscription='remove' wins over any ask attribute sent alongside.
		c.Subscription = SubscriptionNone
		c.AskPending = false
		c.InRoster = false
		return c, wasPresent, nil
	}

	c.Subscription = sub
	c.AskPending = item.Ask == "subscribe"
	if item.Alias != "" {
		c.Alias = item.Alias
	}
	c.InRoster = sub != SubscriptionNone || c.AskPending
	return c, wasPresent, nil
}

// entry returns the contact for h, creating it on first mention. The roster
// holds one reference on every handle it has seen.
func (s *Store) entry(h handle.Handle) *Contact {
	if c, ok := s.contacts[h]; ok {
		return c
	}
	id, _ := s.handles.Resolve(h)
	_ = s.handles.Retain(h)
	c := &Contact{Handle: h, Identifier: id, Subscription: SubscriptionNone}
	s.contacts[h] = c
	return c
}

// Touch records a contact mentioned outside the roster (an incoming message
// or a handle request) without putting it on the roster.
func (s *Store) Touch(h handle.Handle) {
	if s.handles.Valid(h) {
		s.entry(h)
	}
}

// Get returns the entry for h.
func (s *Store) Get(h handle.Handle) (Contact, bool) {
	c, ok := s.contacts[h]
	if !ok {
		return Contact{}, false
	}
	return *c, true
}

// Members returns every contact currently on the roster ordered by
// identifier.
func (s *Store) Members() []Contact {
	var out []Contact
	for _, c := range s.contacts {
		if c.InRoster {
			out = append(out, *c)
		}
	}
	slices.SortFunc(out, func(a, b Contact) int {
		return strings.Compare(a.Identifier, b.Identifier)
	})
	return out
}

// Identifiers resolves handles for a removal request. It runs on the
// dispatcher; the backend call itself happens outside it.
func (s *Store) Identifiers(handles []handle.Handle) ([]string, error) {
	ids := make([]string, 0, len(handles))
	for _, h := range handles {
		id, err := s.handles.Resolve(h)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// RequestAdd asks the backend to add each identifier to the roster.
func (s *Store) RequestAdd(ctx context.Context, identifiers []string) error {
	return s.forward(ctx, identifiers, backend.RosterAdd)
}

// RequestRemove asks the backend to drop each identifier from the roster.
func (s *Store) RequestRemove(ctx context.Context, identifiers []string) error {
	return s.forward(ctx, identifiers, backend.RosterRemove)
}

func (s *Store) forward(ctx context.Context, identifiers []string, op backend.RosterOp) error {
	var errs []error
	for _, id := range identifiers {
		if err := s.edit(ctx, id, op); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) edit(ctx context.Context, id string, op backend.RosterOp) error {
	if s.editor == nil {
		return fmt.Errorf("roster %s %s: %w", op, id, imerr.ErrBackendUnavailable)
	}
	if err := s.editor.EditRoster(ctx, id, op); err != nil {
		return fmt.Errorf("roster %s %s: %w", op, id, err)
	}
	s.logger.Info("roster edit forwarded", zap.String("identifier", id), zap.Stringer("op", op))
	return nil
}
