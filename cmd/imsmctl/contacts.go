package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/matheus3301/imsm/internal/connection"
	"github.com/matheus3301/imsm/internal/handle"
	"github.com/matheus3301/imsm/internal/rpc"
	"github.com/spf13/cobra"
)

func newContactsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Inspect and edit the roster",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List roster contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.call(cmd)
			defer cancel()
			reply, err := c.client.ListContacts(ctx)
			if err != nil {
				return err
			}
			return c.output(cmd, reply.Contacts, func(w io.Writer) {
				if len(reply.Contacts) == 0 {
					fmt.Fprintln(w, "No contacts.")
					return
				}
				for _, ct := range reply.Contacts {
					ask := ""
					if ct.AskPending {
						ask = " (ask pending)"
					}
					fmt.Fprintf(w, "%-6d %-32s %-5s %s%s\n", ct.Handle, ct.Identifier, ct.Subscription, ct.Alias, ask)
				}
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <id>...",
		Short: "Request presence subscriptions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.call(cmd)
			defer cancel()
			return c.client.AddContacts(ctx, &rpc.ContactsRequest{Identifiers: args})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove contacts from the roster",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.call(cmd)
			defer cancel()
			handles, err := c.client.RequestHandles(ctx, &rpc.HandlesRequest{Identifiers: args})
			if err != nil {
				return err
			}
			return c.client.RemoveContacts(ctx, &rpc.ContactsRequest{Handles: handles.Handles})
		},
	})
	return cmd
}

func newHandlesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handles",
		Short: "Map between identifiers and handles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "request <id>...",
		Short: "Intern identifiers and print their handles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.call(cmd)
			defer cancel()
			reply, err := c.client.RequestHandles(ctx, &rpc.HandlesRequest{Identifiers: args})
			if err != nil {
				return err
			}
			return c.output(cmd, reply, func(w io.Writer) {
				for i, h := range reply.Handles {
					fmt.Fprintf(w, "%d\t%s\n", h, args[i])
				}
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "inspect <handle>...",
		Short: "Print the identifiers of handles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hs, err := parseHandles(args)
			if err != nil {
				return err
			}
			ctx, cancel := c.call(cmd)
			defer cancel()
			reply, err := c.client.InspectHandles(ctx, &rpc.InspectRequest{Handles: hs})
			if err != nil {
				return err
			}
			return c.output(cmd, reply, func(w io.Writer) {
				for i, id := range reply.Identifiers {
					fmt.Fprintf(w, "%d\t%s\n", hs[i], id)
				}
			})
		},
	})
	return cmd
}

func newAttributesCmd(c *cli) *cobra.Command {
	var interfaces []string
	cmd := &cobra.Command{
		Use:   "attributes <id>...",
		Short: "Show contact attributes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.call(cmd)
			defer cancel()
			handles, err := c.client.RequestHandles(ctx, &rpc.HandlesRequest{Identifiers: args})
			if err != nil {
				return err
			}
			reply, err := c.client.GetContactAttributes(ctx, &rpc.AttributesRequest{Handles: handles.Handles, Interfaces: interfaces})
			if err != nil {
				return err
			}
			return c.output(cmd, reply.Contacts, func(w io.Writer) {
				for _, a := range reply.Contacts {
					fmt.Fprintf(w, "%d %s\n", a.Handle, a.ContactID)
					if a.Alias != "" {
						fmt.Fprintf(w, "  alias:        %s\n", a.Alias)
					}
					if a.Presence != nil {
						fmt.Fprintf(w, "  presence:     %s %q\n", a.Presence.Status, a.Presence.Message)
					}
					if a.Capabilities != nil {
						fmt.Fprintf(w, "  capabilities: %s\n", strings.Join(a.Capabilities, ", "))
					}
					if a.Roster != nil {
						fmt.Fprintf(w, "  roster:       %s in=%t ask=%t\n", a.Roster.Subscription, a.Roster.InRoster, a.Roster.AskPending)
					}
				}
			})
		},
	}
	cmd.Flags().StringSliceVar(&interfaces, "interface", []string{
		connection.InterfaceContactID,
		connection.InterfaceAlias,
		connection.InterfacePresence,
		connection.InterfaceCapabilities,
		connection.InterfaceRoster,
	}, "attribute interfaces to fetch")
	return cmd
}

func parseHandles(args []string) ([]handle.Handle, error) {
	hs := make([]handle.Handle, 0, len(args))
	for _, arg := range args {
		n, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid handle %q", arg)
		}
		hs = append(hs, handle.Handle(n))
	}
	return hs, nil
}
