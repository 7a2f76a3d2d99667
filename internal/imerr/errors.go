// Package imerr holds the error taxonomy shared by the connection core and
// the RPC layer. Call sites wrap these with fmt.Errorf("...: %w", ...).
package imerr

import "errors"

var (
	// ErrUnknownHandle is returned when a handle was never interned or has
	// been fully released.
	ErrUnknownHandle = errors.New("unknown handle")

	// ErrInvalidIdentifier is returned when an identifier normalises to
	// nothing usable.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrChannelAlreadyExists is returned by CreateChannel when a live
	// channel already exists for the requested key. EnsureChannel never
	// returns it.
	ErrChannelAlreadyExists = errors.New("channel already exists")

	// ErrNoSuchChannel is returned when a channel path does not name a live
	// channel.
	ErrNoSuchChannel = errors.New("no such channel")

	// ErrBackendUnavailable is returned when a send or roster edit is
	// attempted while the backend is not connected.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrProtocolInconsistency marks malformed backend data. It is logged
	// and the offending item skipped; it never reaches a client.
	ErrProtocolInconsistency = errors.New("protocol inconsistency")

	// ErrInvalidArgument covers malformed client requests.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotImplemented is returned for requests the backend or channel kind
	// cannot serve.
	ErrNotImplemented = errors.New("not implemented")
)
