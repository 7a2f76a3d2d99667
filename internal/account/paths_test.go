package account

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	t.Setenv("IMSM_HOME", "")
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".imsm", "accounts", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestPathsUnderAccountDir(t *testing.T) {
	t.Setenv("IMSM_HOME", t.TempDir())
	for name, got := range map[string]string{
		"daemon.sock": SocketPath("test"),
		"LOCK":        LockPath("test"),
		"device.db":   DeviceDBPath("test"),
		"imsm.db":     AppDBPath("test"),
	} {
		if !strings.HasSuffix(got, filepath.Join("accounts", "test", name)) {
			t.Errorf("path %q, want suffix accounts/test/%s", got, name)
		}
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv("IMSM_HOME", t.TempDir())
	if err := EnsureDir("test"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(LogDir("test"))
	if err != nil {
		t.Fatalf("log dir not created: %v", err)
	}
	if !info.IsDir() || info.Mode().Perm() != 0700 {
		t.Errorf("log dir mode = %v", info.Mode())
	}
}

func TestObjectPath(t *testing.T) {
	if got := ObjectPath("work"); got != "/org/imsm/work" {
		t.Errorf("ObjectPath(work) = %q", got)
	}
}
