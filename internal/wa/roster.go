package wa

import (
	"context"
	"slices"
	"strings"

	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/store"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
)

// syncRoster pushes the device store's contact list as the roster. Contacts
// present in the last snapshot but gone from the device are removed.
func (b *Backend) syncRoster(ctx context.Context) {
	all, err := b.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		b.logger.Warn("failed to get contacts from device store", zap.Error(err))
		return
	}
	current := contactsFromDevice(all)

	prev, err := b.db.ListContacts()
	if err != nil {
		b.logger.Warn("failed to load roster snapshot", zap.Error(err))
	}
	if items := diffRoster(prev, current); len(items) > 0 {
		b.emit(backend.RosterPush{Items: items})
	}
	if err := b.db.ReplaceContacts(current); err != nil {
		b.logger.Warn("failed to store roster snapshot", zap.Error(err))
	}
	b.logger.Info("roster synced", zap.Int("contacts", len(current)))

	if err := b.client.SendPresence(ctx, types.PresenceAvailable); err != nil {
		b.logger.Debug("initial presence not sent", zap.Error(err))
	}
	for _, c := range current {
		jid, err := types.ParseJID(c.JID)
		if err != nil {
			continue
		}
		if err := b.client.SubscribePresence(ctx, jid); err != nil {
			b.logger.Debug("presence subscription failed", zap.String("jid", c.JID), zap.Error(err))
		}
	}
}

// contactsFromDevice flattens the device store's contact map into a roster
// snapshot ordered by JID. Only phone-number users are kept.
func contactsFromDevice(all map[types.JID]types.ContactInfo) []store.Contact {
	contacts := make([]store.Contact, 0, len(all))
	for jid, info := range all {
		jid = jid.ToNonAD()
		if jid.Server != types.DefaultUserServer {
			continue
		}
		contacts = append(contacts, store.Contact{
			JID:      jid.String(),
			Name:     info.FullName,
			PushName: info.PushName,
		})
	}
	slices.SortFunc(contacts, func(a, b store.Contact) int {
		return strings.Compare(a.JID, b.JID)
	})
	return contacts
}

// diffRoster builds the push that turns prev into cur. Every current contact
// is reported with a mutual subscription; the roster store works out what
// actually changed.
func diffRoster(prev, cur []store.Contact) []backend.RosterItem {
	seen := make(map[string]bool, len(cur))
	items := make([]backend.RosterItem, 0, len(cur))
	for _, c := range cur {
		seen[c.JID] = true
		items = append(items, backend.RosterItem{
			Identifier:   c.JID,
			Subscription: "both",
			Alias:        c.DisplayName(),
		})
	}
	for _, c := range prev {
		if !seen[c.JID] {
			items = append(items, backend.RosterItem{Identifier: c.JID, Subscription: "remove"})
		}
	}
	return items
}
