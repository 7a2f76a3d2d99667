package api

import (
	"context"
	"errors"

	"github.com/matheus3301/imsm/internal/connection"
	"github.com/matheus3301/imsm/internal/imerr"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps a connection error onto a gRPC status.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}
	return grpcstatus.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, imerr.ErrInvalidIdentifier),
		errors.Is(err, imerr.ErrInvalidArgument),
		errors.Is(err, imerr.ErrUnknownHandle):
		return codes.InvalidArgument
	case errors.Is(err, imerr.ErrChannelAlreadyExists):
		return codes.AlreadyExists
	case errors.Is(err, imerr.ErrNoSuchChannel):
		return codes.NotFound
	case errors.Is(err, imerr.ErrBackendUnavailable), connection.IsStopped(err):
		return codes.Unavailable
	case errors.Is(err, imerr.ErrNotImplemented):
		return codes.Unimplemented
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}
