package api

import (
	"context"

	"github.com/matheus3301/imsm/internal/connection"
	"github.com/matheus3301/imsm/internal/rpc"
)

func channelRequest(req *rpc.ChannelRequest) connection.ChannelRequest {
	return connection.ChannelRequest{Kind: req.Kind, Target: req.Target, TargetID: req.TargetID}
}

func (s *Service) EnsureChannel(ctx context.Context, req *rpc.ChannelRequest) (*rpc.ChannelReply, error) {
	info, created, err := s.conn.EnsureChannel(ctx, channelRequest(req))
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.ChannelReply{Channel: info, Created: created}, nil
}

func (s *Service) CreateChannel(ctx context.Context, req *rpc.ChannelRequest) (*rpc.ChannelReply, error) {
	info, err := s.conn.CreateChannel(ctx, channelRequest(req))
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.ChannelReply{Channel: info, Created: true}, nil
}

func (s *Service) CloseChannel(ctx context.Context, req *rpc.PathRequest) (*rpc.Empty, error) {
	if err := s.conn.CloseChannel(ctx, req.Path); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *Service) ListChannels(ctx context.Context, _ *rpc.Empty) (*rpc.ChannelsReply, error) {
	infos, err := s.conn.ListChannels(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.ChannelsReply{Channels: infos}, nil
}

func (s *Service) Send(ctx context.Context, req *rpc.SendRequest) (*rpc.SendReply, error) {
	token, err := s.conn.Send(ctx, req.Path, req.Type, req.Body)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.SendReply{Token: token}, nil
}

func (s *Service) AcknowledgePending(ctx context.Context, req *rpc.AckRequest) (*rpc.Empty, error) {
	if err := s.conn.AcknowledgePending(ctx, req.Path, req.IDs); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *Service) ListPending(ctx context.Context, req *rpc.PathRequest) (*rpc.PendingReply, error) {
	msgs, err := s.conn.ListPending(ctx, req.Path)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.PendingReply{Messages: msgs}, nil
}
