// Package api implements the imsm.v1.Connection gRPC service over a
// connection.
package api

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/imsm/internal/bus"
	"github.com/matheus3301/imsm/internal/connection"
	"github.com/matheus3301/imsm/internal/rpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// DefaultWatchBuffer is the bus subscription size of one WatchEvents stream
// when Config leaves it unset.
const DefaultWatchBuffer = 256

// Config describes the account the service fronts.
type Config struct {
	Account string
	Backend string
	// WatchBuffer bounds how far a WatchEvents client may fall behind before
	// events are dropped for it.
	WatchBuffer int
}

// Service implements rpc.ConnectionServer.
type Service struct {
	cfg       Config
	startedAt time.Time
	conn      *connection.Connection
	bus       *bus.Bus
	logger    *zap.Logger

	done     chan struct{}
	shutdown sync.Once
}

var _ rpc.ConnectionServer = (*Service)(nil)

// NewService creates the service for one account's connection.
func NewService(cfg Config, conn *connection.Connection, b *bus.Bus, logger *zap.Logger) *Service {
	if cfg.WatchBuffer <= 0 {
		cfg.WatchBuffer = DefaultWatchBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		startedAt: time.Now(),
		conn:      conn,
		bus:       b,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Shutdown ends every WatchEvents stream.
func (s *Service) Shutdown() {
	s.shutdown.Do(func() { close(s.done) })
}

func (s *Service) GetStatus(_ context.Context, _ *rpc.Empty) (*rpc.Status, error) {
	st, reason := s.conn.Status()
	self, selfID := s.conn.Self()
	return &rpc.Status{
		Account:    s.cfg.Account,
		Backend:    s.cfg.Backend,
		Status:     string(st),
		Reason:     string(reason),
		SelfHandle: self,
		SelfID:     selfID,
		UptimeMs:   time.Since(s.startedAt).Milliseconds(),
	}, nil
}

func (s *Service) Connect(ctx context.Context, _ *rpc.Empty) (*rpc.Empty, error) {
	if err := s.conn.Connect(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *Service) Disconnect(ctx context.Context, _ *rpc.Empty) (*rpc.Empty, error) {
	if err := s.conn.Disconnect(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

// WatchEvents forwards bus events until the client goes away or the service
// shuts down. Headers are sent once the subscription is in place, so a
// client that waits for them sees every later event.
func (s *Service) WatchEvents(req *rpc.WatchRequest, stream grpc.ServerStreamingServer[rpc.Event]) error {
	sub := s.bus.Subscribe(req.Prefix, s.cfg.WatchBuffer)
	defer sub.Close()
	if err := stream.SendHeader(metadata.MD{}); err != nil {
		return err
	}

	var dropped uint64
	for {
		select {
		case evt := <-sub.Events():
			if n := sub.Dropped(); n > dropped {
				s.logger.Warn("watcher fell behind, events dropped",
					zap.String("prefix", req.Prefix),
					zap.Uint64("dropped", n-dropped),
				)
				dropped = n
			}
			payload, err := rpc.EncodePayload(evt.Payload)
			if err != nil {
				s.logger.Warn("dropping unencodable event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.Send(&rpc.Event{
				ID:        evt.ID,
				Seq:       evt.Seq,
				Account:   s.cfg.Account,
				Kind:      evt.Kind,
				Timestamp: evt.Timestamp,
				Payload:   payload,
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		case <-s.done:
			return nil
		}
	}
}

// Pair relays the backend's pairing flow.
func (s *Service) Pair(_ *rpc.Empty, stream grpc.ServerStreamingServer[rpc.PairingEvent]) error {
	events, err := s.conn.Pair(stream.Context())
	if err != nil {
		return toStatus(err)
	}
	for evt := range events {
		if err := stream.Send(&rpc.PairingEvent{
			Type:    evt.Type,
			Code:    evt.Code,
			Message: evt.Message,
		}); err != nil {
			return err
		}
	}
	return nil
}
