package main

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/imsm/internal/api"
	"github.com/matheus3301/imsm/internal/backend/loopback"
	"github.com/matheus3301/imsm/internal/bus"
	"github.com/matheus3301/imsm/internal/connection"
	"github.com/matheus3301/imsm/internal/rpc"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func startDaemon(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "imsmctl-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	b := bus.New()
	lb := loopback.New(loopback.Options{ConfirmRoster: true}, nil)
	conn, err := connection.New(connection.Config{Account: "test", SelfID: "me@example.com"}, lb, b, nil)
	require.NoError(t, err)
	conn.Start()

	srv := grpc.NewServer()
	rpc.RegisterConnectionServer(srv, api.NewService(api.Config{Account: "test", Backend: "loopback"}, conn, b, zap.NewNop()))
	socketPath := filepath.Join(dir, "d.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	go func() { _ = srv.Serve(listener) }()

	t.Cleanup(func() {
		srv.Stop()
		conn.Stop()
		lb.Close()
	})
	return socketPath
}

func run(t *testing.T, socketPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--socket", socketPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestStatus(t *testing.T) {
	socketPath := startDaemon(t)

	out, err := run(t, socketPath, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Account: test (loopback)")
	require.Contains(t, out, "Status:  DISCONNECTED")
	require.Contains(t, out, "Self:    me@example.com")

	out, err = run(t, socketPath, "--json", "status")
	require.NoError(t, err)
	var st rpc.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.Equal(t, "test", st.Account)
}

func TestSendOpensChannel(t *testing.T) {
	socketPath := startDaemon(t)

	_, err := run(t, socketPath, "connect")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		out, err := run(t, socketPath, "status")
		return err == nil && strings.Contains(out, "Status:  CONNECTED")
	}, 2*time.Second, 20*time.Millisecond)

	out, err := run(t, socketPath, "send", "amy@example.com", "hello", "there")
	require.NoError(t, err)
	require.Contains(t, out, "Queued on /")

	out, err = run(t, socketPath, "channels", "list")
	require.NoError(t, err)
	require.Contains(t, out, "amy@example.com\tlocal")

	_, err = run(t, socketPath, "channels", "create", "amy@example.com")
	require.Error(t, err)

	_, err = run(t, socketPath, "send", "--type", "shout", "amy@example.com", "x")
	require.ErrorContains(t, err, "shout")
}

func TestHandles(t *testing.T) {
	socketPath := startDaemon(t)

	out, err := run(t, socketPath, "handles", "request", "bob@example.com")
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	require.Equal(t, "bob@example.com", fields[1])

	out, err = run(t, socketPath, "handles", "inspect", fields[0])
	require.NoError(t, err)
	require.Equal(t, fields[0]+"\tbob@example.com\n", out)

	_, err = run(t, socketPath, "handles", "inspect", "nope")
	require.ErrorContains(t, err, "invalid handle")
}

func TestContacts(t *testing.T) {
	socketPath := startDaemon(t)

	out, err := run(t, socketPath, "contacts", "list")
	require.NoError(t, err)
	require.Equal(t, "No contacts.\n", out)

	_, err = run(t, socketPath, "connect")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := run(t, socketPath, "contacts", "add", "amy@example.com")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		out, err := run(t, socketPath, "contacts", "list")
		return err == nil && strings.Contains(out, "amy@example.com")
	}, 2*time.Second, 20*time.Millisecond)

	out, err = run(t, socketPath, "attributes", "--interface", "contact-id", "amy@example.com")
	require.NoError(t, err)
	require.Contains(t, out, "amy@example.com")
	require.NotContains(t, out, "presence:")
}

func TestPrintEvent(t *testing.T) {
	raw, err := rpc.EncodePayload(connection.Sent{Path: "/org/imsm/test/ImChannel1", Token: "t1"})
	require.NoError(t, err)
	evt := &rpc.Event{ID: "e1", Account: "test", Kind: connection.EventTextSent, Timestamp: time.Unix(1700000000, 0), Payload: raw}

	var out bytes.Buffer
	c := &cli{}
	require.NoError(t, c.printEvent(&out, evt))
	require.Contains(t, out.String(), connection.EventTextSent)
	require.Contains(t, out.String(), `"Token":"t1"`)

	out.Reset()
	c.json = true
	require.NoError(t, c.printEvent(&out, evt))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Equal(t, "e1", decoded["id"])
	require.Equal(t, "t1", decoded["payload"].(map[string]any)["Token"])
}
