package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/handle"
	"github.com/matheus3301/imsm/internal/imerr"
)

type editCall struct {
	ID string
	Op backend.RosterOp
}

type mockEditor struct {
	calls []editCall
	err   error
}

func (m *mockEditor) EditRoster(_ context.Context, id string, op backend.RosterOp) error {
	m.calls = append(m.calls, editCall{ID: id, Op: op})
	return m.err
}

func identifiers(cs []Contact) []string {
	var out []string
	for _, c := range cs {
		out = append(out, c.Identifier)
	}
	return out
}

func TestApplyPushBuckets(t *testing.T) {
	handles := handle.NewRegistry(nil)
	s := NewStore(handles, nil, nil)

	change := s.ApplyPush([]backend.RosterItem{
		{Identifier: "bob@foo.com", Subscription: "both"},
		{Identifier: "amy@foo.com", Subscription: "to"},
	})
	if diff := cmp.Diff([]string{"bob@foo.com", "amy@foo.com"}, identifiers(change.Added)); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
	if len(change.Changed) != 0 || len(change.Removed) != 0 {
		t.Errorf("unexpected changed/removed: %+v", change)
	}

	change = s.ApplyPush([]backend.RosterItem{
		{Identifier: "bob@foo.com", Subscription: "from"},
		{Identifier: "amy@foo.com", Subscription: "remove"},
	})
	if diff := cmp.Diff([]string{"bob@foo.com"}, identifiers(change.Changed)); diff != "" {
		t.Errorf("changed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"amy@foo.com"}, identifiers(change.Removed)); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}

	bob, _ := handles.Lookup("bob@foo.com")
	c, ok := s.Get(bob)
	if !ok || c.Subscription != SubscriptionFrom || !c.Published() || c.Subscribed() {
		t.Errorf("bob = %+v, want subscription from", c)
	}
}

// TestNoneWithoutAskIsRemoval covers a push that leaves an item with
// subscription none and no ask: it is reported as removed but its handle
// stays resolvable.
func TestNoneWithoutAskIsRemoval(t *testing.T) {
	handles := handle.NewRegistry(nil)
	s := NewStore(handles, nil, nil)

	change := s.ApplyPush([]backend.RosterItem{{Identifier: "marco@barisione.lit", Subscription: "none"}})
	if diff := cmp.Diff([]string{"marco@barisione.lit"}, identifiers(change.Removed)); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}
	h := change.Removed[0].Handle
	if id, err := handles.Resolve(h); err != nil || id != "marco@barisione.lit" {
		t.Errorf("Resolve(%d) = %q, %v; handle must remain resolvable", h, id, err)
	}
}

func TestAskSubscribeKeepsContactPresent(t *testing.T) {
	s := NewStore(handle.NewRegistry(nil), nil, nil)

	change := s.ApplyPush([]backend.RosterItem{{Identifier: "marco@barisione.lit", Subscription: "none", Ask: "subscribe"}})
	if len(change.Added) != 1 || !change.Added[0].AskPending {
		t.Fatalf("change = %+v, want one added entry with ask pending", change)
	}
	if change.Added[0].Subscription != SubscriptionNone {
		t.Errorf("subscription = %s, want none", change.Added[0].Subscription)
	}
}

// TestRemoveWinsOverAsk covers subscription='remove' arriving together with
// ask='subscribe': the removal is authoritative.
func TestRemoveWinsOverAsk(t *testing.T) {
	s := NewStore(handle.NewRegistry(nil), nil, nil)
	s.ApplyPush([]backend.RosterItem{{Identifier: "marco@barisione.lit", Subscription: "none", Ask: "subscribe"}})

	change := s.ApplyPush([]backend.RosterItem{{Identifier: "marco@barisione.lit", Subscription: "remove", Ask: "subscribe"}})
	if len(change.Removed) != 1 {
		t.Fatalf("change = %+v, want one removal", change)
	}
	if change.Removed[0].AskPending || change.Removed[0].InRoster {
		t.Errorf("removed entry = %+v, want ask cleared and not in roster", change.Removed[0])
	}
	if len(s.Members()) != 0 {
		t.Errorf("Members() = %v, want empty", s.Members())
	}
}

func TestMalformedItemsSkipped(t *testing.T) {
	s := NewStore(handle.NewRegistry(nil), nil, nil)

	change := s.ApplyPush([]backend.RosterItem{
		{Identifier: "", Subscription: "both"},
		{Identifier: "ok@x", Subscription: "both"},
		{Identifier: "weird@x", Subscription: "sometimes"},
		{Identifier: "also-ok@x", Subscription: "to"},
	})
	if diff := cmp.Diff([]string{"ok@x", "also-ok@x"}, identifiers(change.Added)); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
	if len(change.Removed) != 0 {
		t.Errorf("removed = %v, want none", change.Removed)
	}
}

func TestAliasPreserved(t *testing.T) {
	handles := handle.NewRegistry(nil)
	s := NewStore(handles, nil, nil)
	s.ApplyPush([]backend.RosterItem{{Identifier: "a@x", Subscription: "both", Alias: "Alice"}})
	s.ApplyPush([]backend.RosterItem{{Identifier: "a@x", Subscription: "to"}})

	h, _ := handles.Lookup("a@x")
	c, _ := s.Get(h)
	if c.Alias != "Alice" {
		t.Errorf("alias = %q, want Alice", c.Alias)
	}
}

func TestRequestEditsDoNotMutate(t *testing.T) {
	handles := handle.NewRegistry(nil)
	ed := &mockEditor{}
	s := NewStore(handles, ed, nil)

	if err := s.RequestAdd(context.Background(), []string{"new@x"}); err != nil {
		t.Fatal(err)
	}
	if len(s.Members()) != 0 {
		t.Errorf("RequestAdd mutated local roster: %v", s.Members())
	}

	s.ApplyPush([]backend.RosterItem{{Identifier: "old@x", Subscription: "both"}})
	h, _ := handles.Lookup("old@x")
	ids, err := s.Identifiers([]handle.Handle{h})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RequestRemove(context.Background(), ids); err != nil {
		t.Fatal(err)
	}
	if len(s.Members()) != 1 {
		t.Errorf("RequestRemove mutated local roster: %v", s.Members())
	}

	want := []editCall{{ID: "new@x", Op: backend.RosterAdd}, {ID: "old@x", Op: backend.RosterRemove}}
	if diff := cmp.Diff(want, ed.calls); diff != "" {
		t.Errorf("edit calls mismatch (-want +got):\n%s", diff)
	}
}

func TestIdentifiersRejectsUnknownHandle(t *testing.T) {
	s := NewStore(handle.NewRegistry(nil), &mockEditor{}, nil)
	if _, err := s.Identifiers([]handle.Handle{99}); !errors.Is(err, imerr.ErrUnknownHandle) {
		t.Errorf("error = %v, want ErrUnknownHandle", err)
	}
}

func TestRequestPropagatesBackendError(t *testing.T) {
	ed := &mockEditor{err: imerr.ErrBackendUnavailable}
	s := NewStore(handle.NewRegistry(nil), ed, nil)
	err := s.RequestAdd(context.Background(), []string{"a@x", "b@x"})
	if !errors.Is(err, imerr.ErrBackendUnavailable) {
		t.Errorf("error = %v, want ErrBackendUnavailable", err)
	}
	if len(ed.calls) != 2 {
		t.Errorf("got %d edit calls, want 2 (one failure must not block the rest)", len(ed.calls))
	}
}
