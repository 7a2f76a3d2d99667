package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/matheus3301/imsm/internal/rpc"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// watchedEvent is the printable form of an rpc.Event.
type watchedEvent struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Account   string    `json:"account"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"ts"`
	Payload   any       `json:"payload,omitempty"`
}

func newWatchCmd(c *cli) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch [prefix]",
		Short: "Print daemon events, optionally only kinds starting with prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &rpc.WatchRequest{}
			if len(args) == 1 {
				req.Prefix = args[0]
			}
			stream, err := c.client.WatchEvents(cmd.Context(), req)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for seen := 0; count <= 0 || seen < count; seen++ {
				evt, err := stream.Recv()
				if err != nil {
					if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
						return nil
					}
					return err
				}
				if err := c.printEvent(w, evt); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many events (0 = run until interrupted)")
	return cmd
}

func (c *cli) printEvent(w io.Writer, evt *rpc.Event) error {
	payload, err := evt.Fields()
	if err != nil {
		return fmt.Errorf("decode %s: %w", evt.Kind, err)
	}
	we := watchedEvent{ID: evt.ID, Seq: evt.Seq, Account: evt.Account, Kind: evt.Kind, Timestamp: evt.Timestamp, Payload: payload}
	if c.json {
		return json.NewEncoder(w).Encode(we)
	}
	body := ""
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = string(b)
	}
	fmt.Fprintf(w, "%s %-26s %s\n", we.Timestamp.Local().Format("15:04:05.000"), we.Kind, body)
	return nil
}
