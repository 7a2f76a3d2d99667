// Package connection is the per-account session core. It owns the handle
// registry, roster, presence cache and channel registry, and funnels every
// backend event and client request through one dispatcher.
package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/bus"
	"github.com/matheus3301/imsm/internal/channel"
	"github.com/matheus3301/imsm/internal/dispatch"
	"github.com/matheus3301/imsm/internal/handle"
	"github.com/matheus3301/imsm/internal/imerr"
	"github.com/matheus3301/imsm/internal/presence"
	"github.com/matheus3301/imsm/internal/roster"
	"github.com/matheus3301/imsm/internal/status"
	"go.uber.org/zap"
)

// DefaultSelfID stands in for the user when the account names no self_id.
const DefaultSelfID = "self"

// Config configures a Connection.
type Config struct {
	Account string
	// SelfID is the user's own identifier on the protocol.
	SelfID string
	// BasePath prefixes channel object paths. Empty means /org/imsm/<account>.
	BasePath string
	// StrictInvariants panics on channel registry inconsistencies.
	StrictInvariants bool
}

// Connection is one account's session.
type Connection struct {
	cfg     Config
	backend backend.Backend
	bus     *bus.Bus
	logger  *zap.Logger

	handles  *handle.Registry
	roster   *roster.Store
	presence *presence.Cache
	channels *channel.Registry
	status   *status.Machine
	disp     *dispatch.Dispatcher
	self     handle.Handle
}

// New wires a connection over be. Nothing runs until Start.
func New(cfg Config, be backend.Backend, b *bus.Bus, logger *zap.Logger) (*Connection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SelfID == "" {
		cfg.SelfID = DefaultSelfID
	}
	if cfg.BasePath == "" {
		cfg.BasePath = "/org/imsm/" + cfg.Account
	}

	c := &Connection{
		cfg:      cfg,
		backend:  be,
		bus:      b,
		logger:   logger,
		handles:  handle.NewRegistry(nil),
		presence: presence.NewCache(),
		status:   status.NewMachine(b),
	}
	self, err := c.handles.Intern(cfg.SelfID)
	if err != nil {
		return nil, fmt.Errorf("self id: %w", err)
	}
	_ = c.handles.Retain(self)
	c.self = self

	c.roster = roster.NewStore(c.handles, be, logger.Named("roster"))
	c.channels = channel.NewRegistry(c.handles, publisher{bus: b}, channel.Options{
		BasePath: cfg.BasePath,
		Strict:   cfg.StrictInvariants,
		Logger:   logger.Named("channels"),
	})
	c.disp = dispatch.New(be.Events(), c, logger.Named("dispatch"))
	return c, nil
}

// Start begins processing backend events and requests.
func (c *Connection) Start() {
	c.disp.Start()
	c.logger.Info("connection started", zap.String("self", c.cfg.SelfID), zap.String("base_path", c.cfg.BasePath))
}

// Stop halts the dispatcher and closes every channel. Pending messages are
// dropped with the connection.
func (c *Connection) Stop() {
	c.disp.Stop()
	c.channels.CloseAll()
	c.logger.Info("connection stopped")
}

// Self returns the user's own handle and identifier.
func (c *Connection) Self() (handle.Handle, string) {
	return c.self, c.cfg.SelfID
}

// Status returns the connection status and the reason for the last change.
func (c *Connection) Status() (status.State, status.Reason) {
	return c.status.Current(), c.status.Reason()
}

// Connect asks the backend to connect. Progress arrives as status events.
func (c *Connection) Connect(ctx context.Context) error {
	if err := c.backend.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Disconnect asks the backend to disconnect.
func (c *Connection) Disconnect(ctx context.Context) error {
	if err := c.backend.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// RequestHandles interns identifiers. Either every identifier is valid and a
// handle is returned for each, or nothing is interned. Requested handles get a
// contact entry, so they stay valid after channels to them close.
func (c *Connection) RequestHandles(ctx context.Context, identifiers []string) ([]handle.Handle, error) {
	return dispatch.Call(ctx, c.disp, func() ([]handle.Handle, error) {
		for _, id := range identifiers {
			if _, err := c.handles.Normalize(id); err != nil {
				return nil, err
			}
		}
		out := make([]handle.Handle, 0, len(identifiers))
		for _, id := range identifiers {
			h, _ := c.handles.Intern(id)
			c.roster.Touch(h)
			out = append(out, h)
		}
		return out, nil
	})
}

// InspectHandles resolves handles back to identifiers.
func (c *Connection) InspectHandles(ctx context.Context, hs []handle.Handle) ([]string, error) {
	return dispatch.Call(ctx, c.disp, func() ([]string, error) {
		out := make([]string, 0, len(hs))
		for _, h := range hs {
			id, err := c.handles.Resolve(h)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		}
		return out, nil
	})
}

// SetPresence publishes the user's own presence through the backend.
func (c *Connection) SetPresence(ctx context.Context, st, message string) error {
	if err := presence.ValidateSettable(st); err != nil {
		return err
	}
	setter, ok := c.backend.(backend.PresenceSetter)
	if !ok {
		return fmt.Errorf("set presence: %w", imerr.ErrNotImplemented)
	}
	if err := c.requireConnected("set presence"); err != nil {
		return err
	}
	if err := setter.SetPresence(ctx, st, message); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return c.disp.Do(ctx, func() {
		c.updatePresence(c.self, st, message)
	})
}

// AddContacts asks the backend to add identifiers to the roster. The roster
// only changes once the backend pushes the result.
func (c *Connection) AddContacts(ctx context.Context, identifiers []string) error {
	if err := c.requireConnected("add contacts"); err != nil {
		return err
	}
	ids, err := dispatch.Call(ctx, c.disp, func() ([]string, error) {
		out := make([]string, 0, len(identifiers))
		for _, id := range identifiers {
			n, err := c.handles.Normalize(id)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	return c.roster.RequestAdd(ctx, ids)
}

// RemoveContacts asks the backend to drop handles from the roster.
func (c *Connection) RemoveContacts(ctx context.Context, hs []handle.Handle) error {
	if err := c.requireConnected("remove contacts"); err != nil {
		return err
	}
	ids, err := dispatch.Call(ctx, c.disp, func() ([]string, error) {
		return c.roster.Identifiers(hs)
	})
	if err != nil {
		return err
	}
	return c.roster.RequestRemove(ctx, ids)
}

// ListContacts returns the roster members.
func (c *Connection) ListContacts(ctx context.Context) ([]roster.Contact, error) {
	return dispatch.Call(ctx, c.disp, func() ([]roster.Contact, error) {
		return c.roster.Members(), nil
	})
}

// ChannelRequest names the channel a client wants. The target is given by
// handle, by identifier, or both when they agree.
type ChannelRequest struct {
	Kind     string
	Target   handle.Handle
	TargetID string
}

func (c *Connection) key(req ChannelRequest) (channel.Key, error) {
	kind, err := channel.ParseKind(req.Kind)
	if err != nil {
		return channel.Key{}, err
	}
	target := req.Target
	if req.TargetID != "" {
		h, err := c.handles.Intern(req.TargetID)
		if err != nil {
			return channel.Key{}, err
		}
		if target != handle.None && target != h {
			return channel.Key{}, fmt.Errorf("%w: target handle %d does not match target id %q", imerr.ErrInvalidArgument, target, req.TargetID)
		}
		c.roster.Touch(h)
		target = h
	}
	return channel.Key{Kind: kind, Target: target}, nil
}

// EnsureChannel returns the channel for req, creating it if needed.
func (c *Connection) EnsureChannel(ctx context.Context, req ChannelRequest) (channel.Info, bool, error) {
	var (
		info    channel.Info
		created bool
	)
	_, err := dispatch.Call(ctx, c.disp, func() (struct{}, error) {
		key, err := c.key(req)
		if err != nil {
			return struct{}{}, err
		}
		r, made, err := c.channels.Ensure(key, c.self)
		if err != nil {
			return struct{}{}, err
		}
		info, created = r.Info(), made
		return struct{}{}, nil
	})
	return info, created, err
}

// CreateChannel creates the channel for req and fails with
// ErrChannelAlreadyExists if one is live.
func (c *Connection) CreateChannel(ctx context.Context, req ChannelRequest) (channel.Info, error) {
	return dispatch.Call(ctx, c.disp, func() (channel.Info, error) {
		key, err := c.key(req)
		if err != nil {
			return channel.Info{}, err
		}
		r, err := c.channels.Create(key, c.self)
		if err != nil {
			return channel.Info{}, err
		}
		return r.Info(), nil
	})
}

// CloseChannel closes the channel at path.
func (c *Connection) CloseChannel(ctx context.Context, path string) error {
	_, err := dispatch.Call(ctx, c.disp, func() (struct{}, error) {
		return struct{}{}, c.channels.Close(path)
	})
	return err
}

// ListChannels returns every live channel.
func (c *Connection) ListChannels(ctx context.Context) ([]channel.Info, error) {
	return dispatch.Call(ctx, c.disp, func() ([]channel.Info, error) {
		return c.channels.List(), nil
	})
}

// Send submits a message on the channel at path and returns the backend's
// delivery token. A backend failure is returned as is and the channel stays
// open.
func (c *Connection) Send(ctx context.Context, path string, typ backend.MessageType, body string) (string, error) {
	info, err := dispatch.Call(ctx, c.disp, func() (channel.Info, error) {
		return c.channels.PrepareSend(path, typ)
	})
	if err != nil {
		return "", err
	}
	if err := c.requireConnected("send"); err != nil {
		return "", err
	}
	token, err := c.backend.SendMessage(ctx, info.TargetID, typ, body)
	if err != nil {
		c.logger.Warn("send failed", zap.String("path", path), zap.Error(err))
		return "", fmt.Errorf("send on %s: %w", path, err)
	}
	return token, nil
}

// AcknowledgePending removes delivered messages from a channel's queue.
func (c *Connection) AcknowledgePending(ctx context.Context, path string, ids []uint32) error {
	_, err := dispatch.Call(ctx, c.disp, func() (struct{}, error) {
		return struct{}{}, c.channels.Acknowledge(path, ids)
	})
	return err
}

// ListPending returns a channel's queue oldest first.
func (c *Connection) ListPending(ctx context.Context, path string) ([]channel.Message, error) {
	return dispatch.Call(ctx, c.disp, func() ([]channel.Message, error) {
		return c.channels.ListPending(path)
	})
}

// Pair starts interactive device pairing on backends that need it.
func (c *Connection) Pair(ctx context.Context) (<-chan backend.PairingEvent, error) {
	p, ok := c.backend.(backend.Pairer)
	if !ok {
		return nil, fmt.Errorf("pair: %w", imerr.ErrNotImplemented)
	}
	return p.Pair(ctx)
}

func (c *Connection) requireConnected(op string) error {
	if st := c.status.Current(); st != status.Connected {
		return fmt.Errorf("%s while %s: %w", op, st, imerr.ErrBackendUnavailable)
	}
	return nil
}

// IsStopped reports whether err came from a stopped connection.
func IsStopped(err error) bool {
	return errors.Is(err, dispatch.ErrStopped)
}
