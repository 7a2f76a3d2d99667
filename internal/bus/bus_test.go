package bus

import (
	"testing"
	"time"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case evt := <-sub.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func expectNone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case evt := <-sub.Events():
		t.Errorf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitStampsEvents(t *testing.T) {
	b := New()
	sub := b.Subscribe("text.", 10)
	defer sub.Close()

	b.Emit("text.received", "hi")
	b.Emit("text.sent", "ok")

	first, second := recv(t, sub), recv(t, sub)
	if first.Kind != "text.received" || first.Payload != "hi" {
		t.Errorf("first = %+v", first)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Errorf("ids %q and %q should be distinct and set", first.ID, second.ID)
	}
	if second.Seq != first.Seq+1 {
		t.Errorf("seq %d then %d, want consecutive", first.Seq, second.Seq)
	}
	if first.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestPublishKeepsTimestamp(t *testing.T) {
	b := New()
	sub := b.Subscribe("", 1)
	defer sub.Close()

	ts := time.Unix(1700000000, 0)
	b.Publish(Event{Kind: "channel.new", Timestamp: ts})
	if evt := recv(t, sub); !evt.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", evt.Timestamp, ts)
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	sub := b.Subscribe("channel.", 10)
	defer sub.Close()

	b.Emit("connection.status_changed", nil)
	b.Emit("channel.closed", nil)

	if evt := recv(t, sub); evt.Kind != "channel.closed" {
		t.Errorf("got kind %q, want channel.closed", evt.Kind)
	}
	expectNone(t, sub)
}

func TestClose(t *testing.T) {
	b := New()
	sub := b.Subscribe("channel.", 10)
	sub.Close()
	sub.Close()

	b.Emit("channel.new", nil)
	expectNone(t, sub)
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	sub := b.Subscribe("text.", 1)
	defer sub.Close()

	b.Emit("text.one", nil)
	b.Emit("text.two", nil)
	b.Emit("text.three", nil)

	if evt := recv(t, sub); evt.Kind != "text.one" {
		t.Errorf("got %q, want text.one", evt.Kind)
	}
	if got := sub.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		kind, namespace string
		want            bool
	}{
		{"text.sent", "", true},
		{"text.sent", "text.", true},
		{"text.sent", "text.sent", true},
		{"text", "text.", false},
		{"channel.new", "text.", false},
	}
	for _, tt := range tests {
		if got := (Event{Kind: tt.kind}).HasPrefix(tt.namespace); got != tt.want {
			t.Errorf("%q.HasPrefix(%q) = %v, want %v", tt.kind, tt.namespace, got, tt.want)
		}
	}
}
