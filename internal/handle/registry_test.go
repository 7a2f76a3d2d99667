package handle

import (
	"errors"
	"testing"

	"github.com/matheus3301/imsm/internal/imerr"
)

func TestInternIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	a, err := r.Intern("foo@bar.com")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Intern("Foo@Bar.com/Pidgin")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("Intern returned %d and %d for the same contact", a, b)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestInternResolveRoundTrip(t *testing.T) {
	r := NewRegistry(nil)
	ids := []string{"a@x", "b@x", "truc@cafe.fr", "12345@s.whatsapp.net"}
	for _, id := range ids {
		h, err := r.Intern(id)
		if err != nil {
			t.Fatalf("Intern(%q): %v", id, err)
		}
		if err := r.Retain(h); err != nil {
			t.Fatal(err)
		}
		got, err := r.Resolve(h)
		if err != nil {
			t.Fatalf("Resolve(%d): %v", h, err)
		}
		if got != id {
			t.Errorf("Resolve(Intern(%q)) = %q", id, got)
		}
	}
}

func TestInternRejectsEmpty(t *testing.T) {
	r := NewRegistry(nil)
	for _, id := range []string{"", "   ", "/resource"} {
		if _, err := r.Intern(id); !errors.Is(err, imerr.ErrInvalidIdentifier) {
			t.Errorf("Intern(%q) error = %v, want ErrInvalidIdentifier", id, err)
		}
	}
}

func TestResolveUnknown(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Resolve(42); !errors.Is(err, imerr.ErrUnknownHandle) {
		t.Errorf("Resolve(42) error = %v, want ErrUnknownHandle", err)
	}
}

func TestReleaseForgetsHandle(t *testing.T) {
	r := NewRegistry(nil)
	h, _ := r.Intern("gone@x")
	_ = r.Retain(h)
	_ = r.Retain(h)

	if err := r.Release(h); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve(h); err != nil {
		t.Fatalf("handle should survive while refs > 0: %v", err)
	}
	if err := r.Release(h); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve(h); !errors.Is(err, imerr.ErrUnknownHandle) {
		t.Errorf("Resolve after full release error = %v, want ErrUnknownHandle", err)
	}
	if err := r.Release(h); !errors.Is(err, imerr.ErrUnknownHandle) {
		t.Errorf("extra Release error = %v, want ErrUnknownHandle", err)
	}

	// Handles are never reused.
	h2, _ := r.Intern("gone@x")
	if h2 == h {
		t.Errorf("re-interned identifier got recycled handle %d", h)
	}
}

func TestLookupDoesNotIntern(t *testing.T) {
	r := NewRegistry(nil)
	if _, ok := r.Lookup("x@y"); ok {
		t.Error("Lookup found an identifier that was never interned")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	h, _ := r.Intern("x@y")
	if got, ok := r.Lookup("X@Y"); !ok || got != h {
		t.Errorf("Lookup = %d,%v want %d,true", got, ok, h)
	}
}
