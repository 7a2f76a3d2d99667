package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/qr"
	"github.com/matheus3301/imsm/internal/rpc"
	"github.com/spf13/cobra"
)

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show account and connection status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.call(cmd)
			defer cancel()
			st, err := c.client.GetStatus(ctx)
			if err != nil {
				return err
			}
			return c.output(cmd, st, func(w io.Writer) {
				fmt.Fprintf(w, "Account: %s (%s)\n", st.Account, st.Backend)
				fmt.Fprintf(w, "Status:  %s", st.Status)
				if st.Reason != "" {
					fmt.Fprintf(w, " (%s)", st.Reason)
				}
				fmt.Fprintln(w)
				fmt.Fprintf(w, "Self:    %s [handle %d]\n", st.SelfID, st.SelfHandle)
				fmt.Fprintf(w, "Uptime:  %s\n", (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))
			})
		},
	}
}

func newConnectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.call(cmd)
			defer cancel()
			return c.client.Connect(ctx)
		},
	}
}

func newDisconnectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Disconnect the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.call(cmd)
			defer cancel()
			return c.client.Disconnect(ctx)
		},
	}
}

func newPresenceCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "presence <status> [message...]",
		Short: "Set own presence (available, away, busy, hidden)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.call(cmd)
			defer cancel()
			return c.client.SetPresence(ctx, &rpc.PresenceRequest{
				Status:  args[0],
				Message: strings.Join(args[1:], " "),
			})
		},
	}
}

func newPairCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "pair",
		Short: "Pair this device by scanning QR codes from the phone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stream, err := c.client.Pair(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for {
				evt, err := stream.Recv()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				if c.json {
					if err := outputJSON(w, evt); err != nil {
						return err
					}
					continue
				}
				switch evt.Type {
				case backend.PairingCode:
					art, err := qr.Render(evt.Code, "  ")
					if err != nil {
						return fmt.Errorf("render QR code: %w", err)
					}
					fmt.Fprintf(w, "\nScan with the phone's linked devices screen:\n\n%s\n", art)
				case backend.PairingSuccess:
					fmt.Fprintln(w, "Paired. Restart the daemon to connect with the new device.")
					return nil
				default:
					return fmt.Errorf("pairing %s: %s", evt.Type, evt.Message)
				}
			}
		},
	}
}
