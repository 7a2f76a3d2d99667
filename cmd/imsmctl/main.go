package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/imsm/internal/account"
	"github.com/matheus3301/imsm/internal/tui/client"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cli holds the global flags and the daemon connection shared by every
// subcommand.
type cli struct {
	account string
	socket  string
	json    bool
	timeout time.Duration
	client  *client.Client
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:           "imsmctl",
		Short:         "Control a running imsm daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.dial()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if c.client != nil {
				_ = c.client.Close()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&c.account, "account", "a", "", "account name (overrides config default)")
	cmd.PersistentFlags().StringVar(&c.socket, "socket", "", "daemon socket path (overrides the account's)")
	cmd.PersistentFlags().BoolVar(&c.json, "json", false, "output in JSON format")
	cmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 10*time.Second, "per-call timeout")

	cmd.AddCommand(
		newStatusCmd(c),
		newConnectCmd(c),
		newDisconnectCmd(c),
		newPairCmd(c),
		newPresenceCmd(c),
		newContactsCmd(c),
		newHandlesCmd(c),
		newAttributesCmd(c),
		newChannelsCmd(c),
		newSendCmd(c),
		newPendingCmd(c),
		newWatchCmd(c),
	)
	return cmd
}

func (c *cli) dial() error {
	socketPath := c.socket
	name := account.Resolve(c.account)
	if socketPath == "" {
		if err := account.ValidateName(name); err != nil {
			return err
		}
		socketPath = account.SocketPath(name)
	}
	cl, err := client.New(socketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for account %q: %w", name, err)
	}
	c.client = cl
	return nil
}

// call bounds one unary RPC by the --timeout flag.
func (c *cli) call(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.timeout)
}

// output prints v as JSON with --json, or runs text otherwise.
func (c *cli) output(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	if c.json {
		return outputJSON(cmd.OutOrStdout(), v)
	}
	text(cmd.OutOrStdout())
	return nil
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}
