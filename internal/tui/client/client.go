// Package client connects front ends to a running daemon.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/imsm/internal/rpc"
	"google.golang.org/grpc"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	*rpc.Client
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket. The connection is lazy: errors
// show up on the first call.
func New(socketPath string) (*Client, error) {
	conn, err := rpc.Dial(socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{Client: rpc.NewClient(conn), conn: conn}, nil
}

// Probe reports whether a daemon answers on socketPath.
func Probe(socketPath string) bool {
	c, err := New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.GetStatus(ctx)
	return err == nil
}

// WaitReady polls Probe until it succeeds or timeout passes.
func WaitReady(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if Probe(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
