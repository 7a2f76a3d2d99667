package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAcquireAndRelease(t *testing.T) {
	tmpDir := t.TempDir()

	l, err := Acquire(tmpDir, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if l.Path() != filepath.Join(tmpDir, FileName) {
		t.Errorf("Path() = %q", l.Path())
	}
	owner, ok := ReadOwner(tmpDir)
	if !ok || owner.PID != os.Getpid() || owner.Account != "main" {
		t.Errorf("ReadOwner() = %+v, %v", owner, ok)
	}
	if time.Since(owner.Started) > time.Minute {
		t.Errorf("Started = %v", owner.Started)
	}
	if !owner.Alive() {
		t.Error("own process reported dead")
	}

	if err := l.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	if _, ok := ReadOwner(tmpDir); ok {
		t.Error("owner still recorded after release")
	}
}

func TestDoubleAcquireFails(t *testing.T) {
	tmpDir := t.TempDir()

	l1, err := Acquire(tmpDir, "work")
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer func() { _ = l1.Release() }()

	_, err = Acquire(tmpDir, "work")
	if err == nil {
		t.Fatal("second Acquire() should fail")
	}

	var lockErr *LockHeldError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected LockHeldError, got %T: %v", err, err)
	}
	if lockErr.PID != os.Getpid() || lockErr.Account != "work" {
		t.Errorf("LockHeldError = %+v", lockErr)
	}
	if !strings.Contains(err.Error(), `account "work" already served by PID`) {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	tmpDir := t.TempDir()

	l, err := Acquire(tmpDir, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if err := l.Release(); err != nil {
		t.Errorf("first Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

func TestParseOwner(t *testing.T) {
	got := parseOwner("started=2026-01-02T03:04:05Z\npid=42\naccount=main\njunk\n")
	want := Owner{PID: 42, Account: "main", Started: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	if got != want {
		t.Errorf("parseOwner = %+v, want %+v", got, want)
	}
	if got := parseOwner("garbage"); got != (Owner{}) {
		t.Errorf("parseOwner(garbage) = %+v", got)
	}
}

func TestOwnerAlive(t *testing.T) {
	if (Owner{}).Alive() {
		t.Error("zero owner reported alive")
	}
}
