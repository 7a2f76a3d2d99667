package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/imsm/internal/backend"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingHandler struct {
	seen chan backend.Event
}

func (h *recordingHandler) HandleEvent(evt backend.Event) {
	h.seen <- evt
}

func TestEventsAreHandledInOrder(t *testing.T) {
	events := make(chan backend.Event, 3)
	h := &recordingHandler{seen: make(chan backend.Event, 3)}
	d := New(events, h, nil)
	d.Start()
	defer d.Stop()

	for _, body := range []string{"a", "b", "c"} {
		events <- backend.MessageReceived{Identifier: "x@y", Body: body}
	}
	for _, want := range []string{"a", "b", "c"} {
		select {
		case evt := <-h.seen:
			if got := evt.(backend.MessageReceived).Body; got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestRequestsAreSerialised(t *testing.T) {
	d := New(nil, &recordingHandler{}, nil)
	d.Start()
	defer d.Stop()

	var (
		counter  int
		inFlight atomic.Int32
	)
	var g errgroup.Group
	for range 50 {
		g.Go(func() error {
			return d.Do(context.Background(), func() {
				if inFlight.Add(1) != 1 {
					t.Error("two requests ran at once")
				}
				counter++
				inFlight.Add(-1)
			})
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if err := d.Do(context.Background(), func() {
		if counter != 50 {
			t.Errorf("counter = %d, want 50", counter)
		}
	}); err != nil {
		t.Fatal(err)
	}
}

func TestCall(t *testing.T) {
	d := New(nil, &recordingHandler{}, nil)
	d.Start()
	defer d.Stop()

	n, err := Call(context.Background(), d, func() (int, error) { return 7, nil })
	if err != nil || n != 7 {
		t.Errorf("Call = %d, %v", n, err)
	}
	wantErr := errors.New("boom")
	if _, err := Call(context.Background(), d, func() (int, error) { return 0, wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("Call error = %v, want %v", err, wantErr)
	}
}

func TestAcceptedRequestCompletesDespiteCancel(t *testing.T) {
	d := New(nil, &recordingHandler{}, nil)
	d.Start()
	defer d.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	err := d.Do(ctx, func() {
		cancel()
		time.Sleep(10 * time.Millisecond)
		ran = true
	})
	if err != nil {
		t.Fatalf("Do = %v, want nil once accepted", err)
	}
	if !ran {
		t.Error("accepted request did not run to completion")
	}
}

func TestCancelledBeforeAcceptedNeverRuns(t *testing.T) {
	d := New(nil, &recordingHandler{}, nil)
	// Not started: nothing will accept the request.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	if err := d.Do(ctx, func() { ran = true }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do = %v, want DeadlineExceeded", err)
	}
	if ran {
		t.Error("request ran although it was never accepted")
	}
	d.Stop()
}

func TestStopFailsWaitingCallers(t *testing.T) {
	d := New(nil, &recordingHandler{}, nil)
	d.Start()

	block := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = d.Do(context.Background(), func() {
			close(entered)
			<-block
		})
	}()
	<-entered

	errc := make(chan error, 1)
	go func() {
		errc <- d.Do(context.Background(), func() { t.Error("request ran after stop") })
	}()

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	time.Sleep(10 * time.Millisecond)
	close(block)

	select {
	case err := <-errc:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("Do = %v, want ErrStopped", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiting caller not released by Stop")
	}
	<-stopped

	if err := d.Do(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Do after Stop = %v, want ErrStopped", err)
	}
}

func TestClosedEventStreamKeepsServingRequests(t *testing.T) {
	events := make(chan backend.Event)
	close(events)
	d := New(events, &recordingHandler{}, nil)
	d.Start()
	defer d.Stop()

	if err := d.Do(context.Background(), func() {}); err != nil {
		t.Errorf("Do = %v", err)
	}
}
