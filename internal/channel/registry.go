package channel

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/matheus3301/imsm/internal/handle"
	"github.com/matheus3301/imsm/internal/imerr"
	"go.uber.org/zap"
)

// Notifier receives the registry's client-visible notifications. It is called
// on the dispatcher and must not block.
type Notifier interface {
	NewChannels(infos []Info)
	ChannelClosed(info Info)
	MessageReceived(info Info, msg Message)
}

// Options configures a Registry.
type Options struct {
	// BasePath prefixes every channel object path.
	BasePath string
	// Strict turns index inconsistencies into panics instead of repairing
	// them.
	Strict bool
	Logger *zap.Logger
	Now    func() time.Time
}

// Registry owns every live record of a connection.
type Registry struct {
	handles  *handle.Registry
	notifier Notifier
	base     string
	strict   bool
	logger   *zap.Logger
	now      func() time.Time

	byKey  map[Key]*Record
	byPath map[string]*Record
	serial uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(handles *handle.Registry, notifier Notifier, opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		handles:  handles,
		notifier: notifier,
		base:     opts.BasePath,
		strict:   opts.Strict,
		logger:   opts.Logger,
		now:      opts.Now,
		byKey:    make(map[Key]*Record),
		byPath:   make(map[string]*Record),
	}
}

// Ensure returns the live record for key, creating it if none exists.
// created is true only for the call that made the record.
func (g *Registry) Ensure(key Key, requestor handle.Handle) (*Record, bool, error) {
	if err := g.validate(key); err != nil {
		return nil, false, err
	}
	defer g.pin(key.Target, requestor)()
	if r := g.live(key); r != nil {
		return r, false, nil
	}
	r := g.open(key, true, requestor, nil)
	g.notifier.NewChannels([]Info{r.Info()})
	return r, true, nil
}

// Create makes a new record for key and fails with ErrChannelAlreadyExists if
// a live one is already there.
func (g *Registry) Create(key Key, requestor handle.Handle) (*Record, error) {
	if err := g.validate(key); err != nil {
		return nil, err
	}
	defer g.pin(key.Target, requestor)()
	if r := g.live(key); r != nil {
		return nil, fmt.Errorf("%w: %s", imerr.ErrChannelAlreadyExists, r.path)
	}
	r := g.open(key, true, requestor, nil)
	g.notifier.NewChannels([]Info{r.Info()})
	return r, nil
}

// NotifyUnsolicited attaches a backend-originated event to the record for
// key. An existing record keeps its attribution; otherwise a new one is made
// with requested=false and origin as initiator.
func (g *Registry) NotifyUnsolicited(key Key, origin handle.Handle) (*Record, error) {
	if err := g.validate(key); err != nil {
		return nil, err
	}
	defer g.pin(key.Target, origin)()
	if r := g.live(key); r != nil {
		return r, nil
	}
	r := g.open(key, false, origin, nil)
	g.notifier.NewChannels([]Info{r.Info()})
	return r, nil
}

// pin holds a temporary reference on hs so that dropping a stale record
// cannot release them before a replacement takes its own.
func (g *Registry) pin(hs ...handle.Handle) func() {
	var held []handle.Handle
	for _, h := range hs {
		if h != handle.None && g.handles.Retain(h) == nil {
			held = append(held, h)
		}
	}
	return func() {
		for _, h := range held {
			_ = g.handles.Release(h)
		}
	}
}

// Lookup returns the live record at path.
func (g *Registry) Lookup(path string) (*Record, error) {
	r, ok := g.byPath[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", imerr.ErrNoSuchChannel, path)
	}
	if g.byKey[r.key] != r {
		g.violation("path index points at a record its key does not own",
			zap.String("path", path), zap.Uint64("serial", r.serial))
		g.drop(r)
		return nil, fmt.Errorf("%w: %s", imerr.ErrNoSuchChannel, path)
	}
	return r, nil
}

// Get returns the live record for key, if any.
func (g *Registry) Get(key Key) (*Record, bool) {
	r := g.live(key)
	return r, r != nil
}

// List returns every live record, ordered by path.
func (g *Registry) List() []Info {
	out := make([]Info, 0, len(g.byKey))
	for _, k := range slices.SortedFunc(maps.Keys(g.byKey), func(a, b Key) int {
		return cmp.Compare(a.Target, b.Target)
	}) {
		out = append(out, g.byKey[k].Info())
	}
	return out
}

// Len returns the number of live records.
func (g *Registry) Len() int {
	return len(g.byKey)
}

// Close closes the record at path. A record with no pending messages is
// removed; otherwise it is replaced by a fresh record holding those messages.
func (g *Registry) Close(path string) error {
	r, err := g.Lookup(path)
	if err != nil {
		return err
	}
	if r.state != Open {
		return nil
	}
	r.state = Closing
	g.logger.Debug("closing channel", zap.String("path", r.path), zap.Int("pending", len(r.text.pending)))
	if len(r.text.pending) == 0 {
		g.finish(r)
		return nil
	}
	g.notifier.ChannelClosed(r.Info())
	g.respawn(r)
	return nil
}

// CloseAll closes every record and discards pending messages. It runs when
// the connection goes away.
func (g *Registry) CloseAll() {
	for _, info := range g.List() {
		r := g.byPath[info.Path]
		r.state = Closing
		r.text.discard(g.handles)
		g.finish(r)
	}
}

func (g *Registry) validate(key Key) error {
	if key.Kind != KindText {
		return fmt.Errorf("%w: channel type %q", imerr.ErrNotImplemented, key.Kind)
	}
	if key.Target == handle.None {
		return fmt.Errorf("%w: channel target must not be the null handle", imerr.ErrInvalidArgument)
	}
	if !g.handles.Valid(key.Target) {
		return fmt.Errorf("channel target: %w: %d", imerr.ErrUnknownHandle, key.Target)
	}
	return nil
}

// live returns the record owning key after checking it against the path
// index.
func (g *Registry) live(key Key) *Record {
	r, ok := g.byKey[key]
	if !ok {
		return nil
	}
	if g.byPath[r.path] != r || r.state == Closed {
		g.violation("key index points at a record its path does not own",
			zap.String("path", r.path), zap.Uint64("serial", r.serial), zap.Stringer("state", r.state))
		g.drop(r)
		return nil
	}
	return r
}

// open builds and indexes a record. pending, when non-nil, is the rescued
// queue of a respawned record.
func (g *Registry) open(key Key, requested bool, initiator handle.Handle, pending *Text) *Record {
	path := PathFor(g.base, key)
	if stale, ok := g.byPath[path]; ok {
		g.violation("two live records for one channel path",
			zap.String("path", path), zap.Uint64("serial", stale.serial))
		g.drop(stale)
	}

	g.serial++
	r := &Record{
		key:       key,
		path:      path,
		serial:    g.serial,
		requested: requested,
		initiator: initiator,
		createdAt: g.now(),
		state:     Open,
		text:      pending,
	}
	if r.text == nil {
		r.text = newText()
	}
	r.targetID, _ = g.handles.Resolve(key.Target)
	_ = g.handles.Retain(key.Target)
	if initiator != handle.None {
		r.initiatorID, _ = g.handles.Resolve(initiator)
		_ = g.handles.Retain(initiator)
	}
	g.byKey[key] = r
	g.byPath[path] = r

	g.logger.Info("channel opened",
		zap.String("path", path),
		zap.Uint64("serial", r.serial),
		zap.String("target", r.targetID),
		zap.Bool("requested", requested),
		zap.String("initiator", r.initiatorID))
	return r
}

// respawn replaces a closing record that still owns messages. The new record
// takes the same key and path, is attributed to the sender of the oldest
// pending message and carries the queue over with every message marked as
// rescued.
func (g *Registry) respawn(old *Record) *Record {
	q := old.text
	old.text = newText()
	g.unindex(old)
	old.state = Closed

	q.rescue()
	r := g.open(old.key, false, q.pending[0].Sender, q)
	// The new record holds its own references before the old ones go, so
	// the target handle never drops to zero in between.
	g.releaseRefs(old)
	g.logger.Info("channel respawned",
		zap.String("path", r.path),
		zap.Uint64("old_serial", old.serial),
		zap.Uint64("serial", r.serial),
		zap.Int("pending", len(q.pending)))
	g.notifier.NewChannels([]Info{r.Info()})
	return r
}

// finish completes a close with nothing pending.
func (g *Registry) finish(r *Record) {
	if len(r.text.pending) != 0 {
		g.violation("finishing a close with pending messages",
			zap.String("path", r.path), zap.Int("pending", len(r.text.pending)))
		r.text.discard(g.handles)
	}
	g.unindex(r)
	g.releaseRefs(r)
	r.state = Closed
	g.logger.Info("channel closed", zap.String("path", r.path), zap.Uint64("serial", r.serial))
	g.notifier.ChannelClosed(r.Info())
}

// drop removes a record found inconsistent with the indexes without any
// client notification.
func (g *Registry) drop(r *Record) {
	g.unindex(r)
	if r.state != Closed {
		r.text.discard(g.handles)
		g.releaseRefs(r)
		r.state = Closed
	}
}

func (g *Registry) unindex(r *Record) {
	if g.byKey[r.key] == r {
		delete(g.byKey, r.key)
	}
	if g.byPath[r.path] == r {
		delete(g.byPath, r.path)
	}
}

func (g *Registry) releaseRefs(r *Record) {
	_ = g.handles.Release(r.key.Target)
	if r.initiator != handle.None {
		_ = g.handles.Release(r.initiator)
	}
}

func (g *Registry) violation(msg string, fields ...zap.Field) {
	if g.strict {
		panic("channel registry: " + msg)
	}
	g.logger.Error("channel registry inconsistency, dropping stale record", append(fields, zap.String("violation", msg))...)
}
