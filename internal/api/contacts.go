package api

import (
	"cmp"
	"context"
	"maps"
	"slices"

	"github.com/matheus3301/imsm/internal/connection"
	"github.com/matheus3301/imsm/internal/rpc"
)

func (s *Service) RequestHandles(ctx context.Context, req *rpc.HandlesRequest) (*rpc.HandlesReply, error) {
	hs, err := s.conn.RequestHandles(ctx, req.Identifiers)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.HandlesReply{Handles: hs}, nil
}

func (s *Service) InspectHandles(ctx context.Context, req *rpc.InspectRequest) (*rpc.InspectReply, error) {
	ids, err := s.conn.InspectHandles(ctx, req.Handles)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.InspectReply{Identifiers: ids}, nil
}

func (s *Service) GetContactAttributes(ctx context.Context, req *rpc.AttributesRequest) (*rpc.AttributesReply, error) {
	attrs, err := s.conn.GetContactAttributes(ctx, req.Handles, req.Interfaces)
	if err != nil {
		return nil, toStatus(err)
	}
	contacts := slices.SortedFunc(maps.Values(attrs), func(a, b connection.Attributes) int {
		return cmp.Compare(a.Handle, b.Handle)
	})
	return &rpc.AttributesReply{Contacts: contacts}, nil
}

func (s *Service) SetPresence(ctx context.Context, req *rpc.PresenceRequest) (*rpc.Empty, error) {
	if err := s.conn.SetPresence(ctx, req.Status, req.Message); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *Service) ListContacts(ctx context.Context, _ *rpc.Empty) (*rpc.ContactsReply, error) {
	contacts, err := s.conn.ListContacts(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.ContactsReply{Contacts: contacts}, nil
}

func (s *Service) AddContacts(ctx context.Context, req *rpc.ContactsRequest) (*rpc.Empty, error) {
	if err := s.conn.AddContacts(ctx, req.Identifiers); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *Service) RemoveContacts(ctx context.Context, req *rpc.ContactsRequest) (*rpc.Empty, error) {
	if err := s.conn.RemoveContacts(ctx, req.Handles); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}
