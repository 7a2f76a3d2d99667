package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/channel"
	"github.com/matheus3301/imsm/internal/rpc"
	"github.com/spf13/cobra"
)

func newChannelsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage text channels",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List live channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.call(cmd)
			defer cancel()
			reply, err := c.client.ListChannels(ctx)
			if err != nil {
				return err
			}
			return c.output(cmd, reply.Channels, func(w io.Writer) {
				if len(reply.Channels) == 0 {
					fmt.Fprintln(w, "No channels.")
					return
				}
				for _, info := range reply.Channels {
					printChannel(w, info)
				}
			})
		},
	})
	for _, create := range []bool{false, true} {
		use, short := "ensure <id>", "Open a text channel, reusing a live one"
		if create {
			use, short = "create <id>", "Open a new text channel, failing if one exists"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := c.call(cmd)
				defer cancel()
				req := &rpc.ChannelRequest{Kind: string(channel.KindText), TargetID: args[0]}
				call := c.client.EnsureChannel
				if create {
					call = c.client.CreateChannel
				}
				reply, err := call(ctx, req)
				if err != nil {
					return err
				}
				return c.output(cmd, reply, func(w io.Writer) {
					printChannel(w, reply.Channel)
				})
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "close <path>",
		Short: "Close a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.call(cmd)
			defer cancel()
			return c.client.CloseChannel(ctx, args[0])
		},
	})
	return cmd
}

func printChannel(w io.Writer, info channel.Info) {
	origin := "remote"
	if info.Requested {
		origin = "local"
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\tpending=%d\n", info.Path, info.TargetID, origin, info.State, info.Pending)
}

func newSendCmd(c *cli) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "send <path|id> <text...>",
		Short: "Send a message on a channel, opening one to id if needed",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mt, err := backend.ParseMessageType(typ)
			if err != nil {
				return err
			}
			ctx, cancel := c.call(cmd)
			defer cancel()

			path := args[0]
			if !strings.HasPrefix(path, "/") {
				reply, err := c.client.EnsureChannel(ctx, &rpc.ChannelRequest{Kind: string(channel.KindText), TargetID: path})
				if err != nil {
					return err
				}
				path = reply.Channel.Path
			}
			reply, err := c.client.Send(ctx, &rpc.SendRequest{Path: path, Type: mt, Body: strings.Join(args[1:], " ")})
			if err != nil {
				return err
			}
			return c.output(cmd, reply, func(w io.Writer) {
				fmt.Fprintf(w, "Queued on %s, token %s\n", path, reply.Token)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", backend.MessageNormal.String(), "message type: normal|action|notice|auto-reply")
	return cmd
}

func newPendingCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Inspect and acknowledge received messages",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <path>",
		Short: "List unacknowledged messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.call(cmd)
			defer cancel()
			reply, err := c.client.ListPending(ctx, args[0])
			if err != nil {
				return err
			}
			return c.output(cmd, reply.Messages, func(w io.Writer) {
				for _, m := range reply.Messages {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", m.ID, m.Timestamp.Format("2006-01-02 15:04:05"), m.SenderID, m.Type, m.Body)
				}
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "ack <path> <id>...",
		Short: "Acknowledge messages",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uint32, 0, len(args)-1)
			for _, arg := range args[1:] {
				n, err := strconv.ParseUint(arg, 10, 32)
				if err != nil {
					return fmt.Errorf("invalid message id %q", arg)
				}
				ids = append(ids, uint32(n))
			}
			ctx, cancel := c.call(cmd)
			defer cancel()
			return c.client.AcknowledgePending(ctx, &rpc.AckRequest{Path: args[0], IDs: ids})
		},
	})
	return cmd
}
