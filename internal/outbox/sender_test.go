package outbox

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/imsm/internal/store"
	"go.uber.org/zap"
)

// mockTransport records calls and fails the first failures attempts.
type mockTransport struct {
	mu       sync.Mutex
	calls    []deliverCall
	failures int
}

type deliverCall struct {
	JID  string
	Type int
	Body string
}

func (m *mockTransport) Deliver(_ context.Context, jid string, msgType int, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, deliverCall{JID: jid, Type: msgType, Body: body})
	if m.failures > 0 {
		m.failures--
		return "", fmt.Errorf("network error")
	}
	return "server-" + jid, nil
}

func (m *mockTransport) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func startSender(t *testing.T, db *store.DB, tr Transport, attempts int) (*Sender, <-chan Result) {
	t.Helper()
	results := make(chan Result, 10)
	logger, _ := zap.NewDevelopment()
	s := NewSender(db, tr, attempts, func(r Result) { results <- r }, logger)
	s.interval = 20 * time.Millisecond
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s, results
}

func waitResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for send result")
		return Result{}
	}
}

func TestSenderDeliversQueuedMessage(t *testing.T) {
	db := testDB(t)
	mock := &mockTransport{}
	s, results := startSender(t, db, mock, 3)

	if err := s.Enqueue("c1", "bob@s.whatsapp.net", 1, "hello"); err != nil {
		t.Fatal(err)
	}
	r := waitResult(t, results)
	if r.Err != nil || r.ClientMsgID != "c1" || r.ServerMsgID != "server-bob@s.whatsapp.net" {
		t.Errorf("result = %+v", r)
	}
	if mock.calls[0] != (deliverCall{JID: "bob@s.whatsapp.net", Type: 1, Body: "hello"}) {
		t.Errorf("call = %+v", mock.calls[0])
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0 after send", len(pending))
	}
}

func TestSenderRetriesThenSucceeds(t *testing.T) {
	db := testDB(t)
	mock := &mockTransport{failures: 2}
	s, results := startSender(t, db, mock, 3)

	_ = s.Enqueue("c1", "bob@s.whatsapp.net", 0, "hello")
	r := waitResult(t, results)
	if r.Err != nil {
		t.Fatalf("result = %+v, want success on third attempt", r)
	}
	if mock.callCount() != 3 {
		t.Errorf("got %d attempts, want 3", mock.callCount())
	}
	e, _ := db.GetOutbox("c1")
	if e.Status != store.OutboxSent || e.Attempts != 3 {
		t.Errorf("entry = %+v", e)
	}
}

func TestSenderGivesUpAfterAttempts(t *testing.T) {
	db := testDB(t)
	mock := &mockTransport{failures: 10}
	s, results := startSender(t, db, mock, 2)

	_ = s.Enqueue("c1", "bob@s.whatsapp.net", 0, "hello")
	r := waitResult(t, results)
	if r.Err == nil {
		t.Fatalf("result = %+v, want failure", r)
	}

	select {
	case extra := <-results:
		t.Errorf("unexpected second result %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
	if mock.callCount() != 2 {
		t.Errorf("got %d attempts, want 2", mock.callCount())
	}
	e, _ := db.GetOutbox("c1")
	if e.Status != store.OutboxFailed || e.ErrorMessage != "network error" {
		t.Errorf("entry = %+v", e)
	}
}

func TestSenderRecoversInterruptedSends(t *testing.T) {
	db := testDB(t)
	_ = db.QueueOutbox("c1", "bob@s.whatsapp.net", 0, "left over")
	_ = db.MarkOutboxSending("c1")

	_, results := startSender(t, db, &mockTransport{}, 3)
	if r := waitResult(t, results); r.ClientMsgID != "c1" || r.Err != nil {
		t.Errorf("result = %+v", r)
	}
}
