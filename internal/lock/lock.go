// Package lock makes sure at most one daemon serves an account.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file inside an account directory.
const FileName = "LOCK"

// Owner describes the daemon holding an account lock, as recorded in the
// lock file.
type Owner struct {
	PID     int
	Account string
	Started time.Time
}

// Alive reports whether the owning process still exists.
func (o Owner) Alive() bool {
	if o.PID <= 0 {
		return false
	}
	err := syscall.Kill(o.PID, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// LockHeldError is returned when another process holds the account lock.
type LockHeldError struct {
	Owner
	Path string
}

func (e *LockHeldError) Error() string {
	if e.Started.IsZero() {
		return fmt.Sprintf("account %q already served by PID %d (%s)", e.Account, e.PID, e.Path)
	}
	return fmt.Sprintf("account %q already served by PID %d since %s (%s)",
		e.Account, e.PID, e.Started.Local().Format(time.DateTime), e.Path)
}

// Lock is an acquired account lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive flock on the lock file of account under
// accountDir and records this process as its owner. It returns a
// *LockHeldError when another process got there first.
func Acquire(accountDir, account string) (*Lock, error) {
	lockPath := filepath.Join(accountDir, FileName)

	if err := os.MkdirAll(accountDir, 0700); err != nil {
		return nil, fmt.Errorf("create account dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		owner, _ := ReadOwner(accountDir)
		if owner.Account == "" {
			owner.Account = account
		}
		return nil, &LockHeldError{Owner: owner, Path: lockPath}
	}

	owner := Owner{PID: os.Getpid(), Account: account, Started: time.Now().UTC()}
	if err := writeOwner(f, owner); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &Lock{file: f, path: lockPath}, nil
}

func writeOwner(f *os.File, o Owner) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := fmt.Fprintf(f, "pid=%d\naccount=%s\nstarted=%s\n", o.PID, o.Account, o.Started.Format(time.RFC3339))
	return err
}

// ReadOwner returns the owner recorded in the lock file under accountDir.
// It reports false when there is no lock file or it names no process.
func ReadOwner(accountDir string) (Owner, bool) {
	data, err := os.ReadFile(filepath.Join(accountDir, FileName))
	if err != nil {
		return Owner{}, false
	}
	o := parseOwner(string(data))
	return o, o.PID > 0
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release releases the lock. Safe to call on nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove before closing so no stale owner survives.
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func parseOwner(content string) Owner {
	var o Owner
	for line := range strings.SplitSeq(content, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			o.PID, _ = strconv.Atoi(value)
		case "account":
			o.Account = value
		case "started":
			o.Started, _ = time.Parse(time.RFC3339, value)
		}
	}
	return o
}
