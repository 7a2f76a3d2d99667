// Package model holds the TUI's client-side state. It is fed by RPC calls
// and by the daemon's event stream.
package model

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/channel"
	"github.com/matheus3301/imsm/internal/connection"
	"github.com/matheus3301/imsm/internal/roster"
	"github.com/matheus3301/imsm/internal/rpc"
	"github.com/matheus3301/imsm/internal/status"
	"google.golang.org/grpc"
)

// ErrNoChannel is returned by calls that need an open channel.
var ErrNoChannel = errors.New("no channel open")

// Daemon is the part of the daemon API the view model uses.
type Daemon interface {
	GetStatus(ctx context.Context, opts ...grpc.CallOption) (*rpc.Status, error)
	ListChannels(ctx context.Context, opts ...grpc.CallOption) (*rpc.ChannelsReply, error)
	ListContacts(ctx context.Context, opts ...grpc.CallOption) (*rpc.ContactsReply, error)
	ListPending(ctx context.Context, path string, opts ...grpc.CallOption) (*rpc.PendingReply, error)
	EnsureChannel(ctx context.Context, in *rpc.ChannelRequest, opts ...grpc.CallOption) (*rpc.ChannelReply, error)
	CloseChannel(ctx context.Context, path string, opts ...grpc.CallOption) error
	Send(ctx context.Context, in *rpc.SendRequest, opts ...grpc.CallOption) (*rpc.SendReply, error)
	AcknowledgePending(ctx context.Context, in *rpc.AckRequest, opts ...grpc.CallOption) error
}

// Line is one transcript entry.
type Line struct {
	Timestamp time.Time
	Sender    string
	Type      backend.MessageType
	Flags     backend.MessageFlags
	Body      string
	Outgoing  bool
	Token     string
	Failed    bool
}

// ViewModel caches daemon state for rendering. Transcripts exist only on
// this side: messages are acknowledged once shown.
type ViewModel struct {
	mu sync.RWMutex

	daemon      Daemon
	status      rpc.Status
	channels    []channel.Info
	contacts    []roster.Contact
	transcripts map[string][]Line
	unread      map[string]int
	active      string
}

// NewViewModel creates a view model backed by d.
func NewViewModel(d Daemon) *ViewModel {
	return &ViewModel{
		daemon:      d,
		transcripts: make(map[string][]Line),
		unread:      make(map[string]int),
	}
}

// LoadStatus fetches the connection status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	st, err := vm.daemon.GetStatus(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = *st
	vm.mu.Unlock()
	return nil
}

// LoadChannels fetches the channel list.
func (vm *ViewModel) LoadChannels(ctx context.Context) error {
	reply, err := vm.daemon.ListChannels(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.channels = nil
	for _, info := range reply.Channels {
		vm.upsertChannel(info)
	}
	vm.mu.Unlock()
	return nil
}

// LoadContacts fetches the roster.
func (vm *ViewModel) LoadContacts(ctx context.Context) error {
	reply, err := vm.daemon.ListContacts(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.contacts = reply.Contacts
	vm.mu.Unlock()
	return nil
}

// Open makes path the active channel and moves its pending messages into
// the transcript.
func (vm *ViewModel) Open(ctx context.Context, path string) error {
	vm.mu.Lock()
	vm.active = path
	vm.unread[path] = 0
	vm.mu.Unlock()
	return vm.drain(ctx, path)
}

// OpenContact ensures a text channel to identifier and opens it.
func (vm *ViewModel) OpenContact(ctx context.Context, identifier string) (string, error) {
	reply, err := vm.daemon.EnsureChannel(ctx, &rpc.ChannelRequest{Kind: string(channel.KindText), TargetID: identifier})
	if err != nil {
		return "", err
	}
	vm.mu.Lock()
	vm.upsertChannel(reply.Channel)
	vm.mu.Unlock()
	return reply.Channel.Path, vm.Open(ctx, reply.Channel.Path)
}

// CloseActive closes the active channel.
func (vm *ViewModel) CloseActive(ctx context.Context) error {
	path := vm.Active()
	if path == "" {
		return ErrNoChannel
	}
	if err := vm.daemon.CloseChannel(ctx, path); err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.active == path {
		vm.active = ""
	}
	vm.mu.Unlock()
	return nil
}

// Leave drops the active channel without closing it.
func (vm *ViewModel) Leave() {
	vm.mu.Lock()
	vm.active = ""
	vm.mu.Unlock()
}

// Send sends body on the active channel.
func (vm *ViewModel) Send(ctx context.Context, typ backend.MessageType, body string) error {
	path := vm.Active()
	if path == "" {
		return ErrNoChannel
	}
	reply, err := vm.daemon.Send(ctx, &rpc.SendRequest{Path: path, Type: typ, Body: body})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.transcripts[path] = append(vm.transcripts[path], Line{
		Timestamp: time.Now(),
		Sender:    "You",
		Type:      typ,
		Body:      body,
		Outgoing:  true,
		Token:     reply.Token,
	})
	vm.mu.Unlock()
	return nil
}

// Apply folds one daemon event into the model. It reports whether anything
// visible changed.
func (vm *ViewModel) Apply(ctx context.Context, evt *rpc.Event) (bool, error) {
	switch evt.Kind {
	case status.EventStatusChanged:
		var change status.StatusChange
		if err := evt.Decode(&change); err != nil {
			return false, fmt.Errorf("decode %s: %w", evt.Kind, err)
		}
		vm.mu.Lock()
		vm.status.Status = string(change.To)
		vm.status.Reason = string(change.Reason)
		vm.mu.Unlock()
		return true, nil

	case connection.EventChannelNew:
		var created connection.NewChannels
		if err := evt.Decode(&created); err != nil {
			return false, fmt.Errorf("decode %s: %w", evt.Kind, err)
		}
		vm.mu.Lock()
		for _, info := range created.Channels {
			vm.upsertChannel(info)
		}
		vm.mu.Unlock()
		return true, nil

	case connection.EventChannelClosed:
		var closed connection.ChannelClosed
		if err := evt.Decode(&closed); err != nil {
			return false, fmt.Errorf("decode %s: %w", evt.Kind, err)
		}
		vm.mu.Lock()
		vm.channels = slices.DeleteFunc(vm.channels, func(info channel.Info) bool {
			return info.Path == closed.Channel.Path
		})
		vm.mu.Unlock()
		return true, nil

	case connection.EventTextReceived:
		var received connection.MessageReceived
		if err := evt.Decode(&received); err != nil {
			return false, fmt.Errorf("decode %s: %w", evt.Kind, err)
		}
		path := received.Channel.Path
		vm.mu.Lock()
		vm.upsertChannel(received.Channel)
		vm.transcripts[path] = append(vm.transcripts[path], lineOf(received.Message))
		active := vm.active == path
		if !active {
			vm.unread[path]++
		}
		vm.mu.Unlock()
		if active {
			return true, vm.daemon.AcknowledgePending(ctx, &rpc.AckRequest{Path: path, IDs: []uint32{received.Message.ID}})
		}
		return true, nil

	case connection.EventTextSendError:
		var failed connection.Sent
		if err := evt.Decode(&failed); err != nil {
			return false, fmt.Errorf("decode %s: %w", evt.Kind, err)
		}
		vm.mu.Lock()
		defer vm.mu.Unlock()
		lines := vm.transcripts[failed.Path]
		for i := range lines {
			if lines[i].Token == failed.Token {
				lines[i].Failed = true
				return true, nil
			}
		}
		return false, nil

	case connection.EventContactsChanged:
		var change connection.ContactsChanged
		if err := evt.Decode(&change); err != nil {
			return false, fmt.Errorf("decode %s: %w", evt.Kind, err)
		}
		vm.mu.Lock()
		for _, c := range change.Removed {
			vm.contacts = slices.DeleteFunc(vm.contacts, func(x roster.Contact) bool { return x.Handle == c.Handle })
		}
		for _, c := range slices.Concat(change.Added, change.Changed) {
			i := slices.IndexFunc(vm.contacts, func(x roster.Contact) bool { return x.Handle == c.Handle })
			if i >= 0 {
				vm.contacts[i] = c
			} else {
				vm.contacts = append(vm.contacts, c)
			}
		}
		slices.SortFunc(vm.contacts, func(a, b roster.Contact) int { return strings.Compare(a.Identifier, b.Identifier) })
		vm.mu.Unlock()
		return true, nil
	}
	return false, nil
}

// drain moves pending messages of path into its transcript and
// acknowledges them.
func (vm *ViewModel) drain(ctx context.Context, path string) error {
	reply, err := vm.daemon.ListPending(ctx, path)
	if err != nil {
		return err
	}
	if len(reply.Messages) == 0 {
		return nil
	}
	ids := make([]uint32, 0, len(reply.Messages))
	vm.mu.Lock()
	for _, m := range reply.Messages {
		if !vm.seen(path, m) {
			vm.transcripts[path] = append(vm.transcripts[path], lineOf(m))
		}
		ids = append(ids, m.ID)
	}
	vm.mu.Unlock()
	return vm.daemon.AcknowledgePending(ctx, &rpc.AckRequest{Path: path, IDs: ids})
}

// seen reports whether m already reached the transcript through the event
// stream.
func (vm *ViewModel) seen(path string, m channel.Message) bool {
	return slices.ContainsFunc(vm.transcripts[path], func(l Line) bool {
		return !l.Outgoing && l.Timestamp.Equal(m.Timestamp) && l.Sender == m.SenderID && l.Body == m.Body
	})
}

func (vm *ViewModel) upsertChannel(info channel.Info) {
	i := slices.IndexFunc(vm.channels, func(x channel.Info) bool { return x.Path == info.Path })
	if i >= 0 {
		vm.channels[i] = info
		return
	}
	vm.channels = append(vm.channels, info)
	slices.SortFunc(vm.channels, func(a, b channel.Info) int { return a.CreatedAt.Compare(b.CreatedAt) })
}

func lineOf(m channel.Message) Line {
	return Line{
		Timestamp: m.Timestamp,
		Sender:    m.SenderID,
		Type:      m.Type,
		Flags:     m.Flags,
		Body:      m.Body,
	}
}

// Status returns the last known connection status.
func (vm *ViewModel) Status() rpc.Status {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Channels returns the live channels, oldest first.
func (vm *ViewModel) Channels() []channel.Info {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.channels)
}

// Contacts returns the roster ordered by identifier.
func (vm *ViewModel) Contacts() []roster.Contact {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.contacts)
}

// Transcript returns what has been shown on path.
func (vm *ViewModel) Transcript(path string) []Line {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.transcripts[path])
}

// Unread returns the number of messages received on path while it was not
// active.
func (vm *ViewModel) Unread(path string) int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.unread[path]
}

// Active returns the open channel's path, or "".
func (vm *ViewModel) Active() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active
}

// Label names a channel by the contact's alias when one is known.
func (vm *ViewModel) Label(info channel.Info) string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.contacts {
		if c.Handle == info.Target && c.Alias != "" {
			return c.Alias
		}
	}
	return info.TargetID
}
