// Package handle maps protocol identifiers to opaque per-connection handles.
package handle

import (
	"fmt"
	"strings"

	"github.com/matheus3301/imsm/internal/imerr"
)

// Handle is an opaque per-connection contact identifier. Zero means none.
type Handle uint32

// None is the zero handle.
const None Handle = 0

// Normalizer canonicalises a raw identifier. It returns an empty string for
// identifiers that cannot be used.
type Normalizer func(raw string) string

// NormalizeJID lower-cases an address and strips an XMPP-style resource.
func NormalizeJID(raw string) string {
	id := strings.TrimSpace(raw)
	if i := strings.IndexByte(id, '/'); i >= 0 {
		id = id[:i]
	}
	return strings.ToLower(id)
}

type entry struct {
	id       string
	refs     int
	retained bool
}

// Registry is a reference-counted bidirectional handle table. It is not safe
// for concurrent use; a connection only touches it from its dispatcher.
type Registry struct {
	normalize Normalizer
	byID      map[string]Handle
	entries   map[Handle]*entry
	next      Handle
}

// NewRegistry creates an empty registry. A nil normalizer uses NormalizeJID.
func NewRegistry(normalize Normalizer) *Registry {
	if normalize == nil {
		normalize = NormalizeJID
	}
	return &Registry{
		normalize: normalize,
		byID:      make(map[string]Handle),
		entries:   make(map[Handle]*entry),
		next:      1,
	}
}

// Normalize returns the canonical form of raw, or ErrInvalidIdentifier.
func (r *Registry) Normalize(raw string) (string, error) {
	id := r.normalize(raw)
	if id == "" {
		return "", fmt.Errorf("%w: %q", imerr.ErrInvalidIdentifier, raw)
	}
	return id, nil
}

// Intern returns the handle for identifier, allocating one on first use.
// Interning does not take a reference.
func (r *Registry) Intern(identifier string) (Handle, error) {
	id, err := r.Normalize(identifier)
	if err != nil {
		return None, err
	}
	if h, ok := r.byID[id]; ok {
		return h, nil
	}
	h := r.next
	r.next++
	r.byID[id] = h
	r.entries[h] = &entry{id: id}
	return h, nil
}

// Lookup returns the handle for identifier without interning it.
func (r *Registry) Lookup(identifier string) (Handle, bool) {
	id := r.normalize(identifier)
	if id == "" {
		return None, false
	}
	h, ok := r.byID[id]
	return h, ok
}

// Resolve returns the identifier a handle stands for.
func (r *Registry) Resolve(h Handle) (string, error) {
	e, ok := r.entries[h]
	if !ok {
		return "", fmt.Errorf("%w: %d", imerr.ErrUnknownHandle, h)
	}
	return e.id, nil
}

// Valid reports whether h currently resolves.
func (r *Registry) Valid(h Handle) bool {
	_, ok := r.entries[h]
	return ok
}

// Retain takes a reference on h.
func (r *Registry) Retain(h Handle) error {
	e, ok := r.entries[h]
	if !ok {
		return fmt.Errorf("%w: %d", imerr.ErrUnknownHandle, h)
	}
	e.refs++
	e.retained = true
	return nil
}

// Release drops a reference on h. When the last reference goes the handle
// is forgotten; a later Intern of the same identifier yields a new handle.
func (r *Registry) Release(h Handle) error {
	e, ok := r.entries[h]
	if !ok || e.refs == 0 {
		return fmt.Errorf("%w: %d", imerr.ErrUnknownHandle, h)
	}
	e.refs--
	if e.refs == 0 && e.retained {
		delete(r.entries, h)
		delete(r.byID, e.id)
	}
	return nil
}

// Refs returns the current reference count of h.
func (r *Registry) Refs(h Handle) int {
	if e, ok := r.entries[h]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	return len(r.entries)
}
