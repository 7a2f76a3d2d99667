package loopback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/imerr"
	"github.com/matheus3301/imsm/internal/status"
)

func drain(b *Backend) []backend.Event {
	var out []backend.Event
	for {
		select {
		case evt := <-b.Events():
			out = append(out, evt)
		default:
			return out
		}
	}
}

func TestConnectReportsStatus(t *testing.T) {
	b := New(Options{}, nil)
	ctx := context.Background()
	if err := b.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	want := []backend.Event{
		backend.ConnectionStatusChanged{Status: status.Connecting, Reason: status.ReasonRequested},
		backend.ConnectionStatusChanged{Status: status.Connected, Reason: status.ReasonRequested},
	}
	if diff := cmp.Diff(want, drain(b)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestSendRequiresConnection(t *testing.T) {
	b := New(Options{}, nil)
	if _, err := b.SendMessage(context.Background(), "a@x", backend.MessageNormal, "hi"); !errors.Is(err, imerr.ErrBackendUnavailable) {
		t.Errorf("SendMessage = %v, want ErrBackendUnavailable", err)
	}
	if err := b.EditRoster(context.Background(), "a@x", backend.RosterAdd); !errors.Is(err, imerr.ErrBackendUnavailable) {
		t.Errorf("EditRoster = %v, want ErrBackendUnavailable", err)
	}
}

func TestSendEcho(t *testing.T) {
	b := New(Options{Echo: true}, nil)
	ctx := context.Background()
	_ = b.Connect(ctx)
	drain(b)

	token, err := b.SendMessage(ctx, "a@x", backend.MessageAction, "waves")
	if err != nil {
		t.Fatal(err)
	}
	want := []backend.Event{
		backend.MessageSent{Identifier: "a@x", Token: token},
		backend.MessageReceived{Identifier: "a@x", Type: backend.MessageAction, Body: "waves"},
	}
	if diff := cmp.Diff(want, drain(b), cmpopts.IgnoreFields(backend.MessageReceived{}, "Timestamp")); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Sent{{Identifier: "a@x", Type: backend.MessageAction, Body: "waves", Token: token}}, b.Sends()); diff != "" {
		t.Errorf("sends mismatch (-want +got):\n%s", diff)
	}
}

func TestRosterConfirmation(t *testing.T) {
	b := New(Options{ConfirmRoster: true}, nil)
	ctx := context.Background()
	_ = b.Connect(ctx)
	drain(b)

	_ = b.EditRoster(ctx, "a@x", backend.RosterAdd)
	_ = b.EditRoster(ctx, "a@x", backend.RosterRemove)
	want := []backend.Event{
		backend.RosterPush{Items: []backend.RosterItem{{Identifier: "a@x", Subscription: "none", Ask: "subscribe"}}},
		backend.RosterPush{Items: []backend.RosterItem{{Identifier: "a@x", Subscription: "remove"}}},
	}
	if diff := cmp.Diff(want, drain(b)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestInjectAfterClose(t *testing.T) {
	b := New(Options{}, nil)
	b.Close()
	b.Close()
	if err := b.Inject(context.Background(), backend.RosterPush{}); !errors.Is(err, imerr.ErrBackendUnavailable) {
		t.Errorf("Inject after Close = %v", err)
	}
	if _, ok := <-b.Events(); ok {
		t.Error("event stream still open")
	}
}

func TestCloseReleasesBlockedInject(t *testing.T) {
	b := New(Options{EventBuffer: 1}, nil)
	ctx := context.Background()
	if err := b.Inject(ctx, backend.RosterPush{}); err != nil {
		t.Fatal(err)
	}

	blocked := make(chan error, 1)
	go func() { blocked <- b.Inject(ctx, backend.RosterPush{}) }()

	closed := make(chan struct{})
	go func() {
		b.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked behind a full event stream")
	}
	select {
	case err := <-blocked:
		if !errors.Is(err, imerr.ErrBackendUnavailable) {
			t.Errorf("blocked Inject = %v, want ErrBackendUnavailable", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Inject still blocked after Close")
	}
}
