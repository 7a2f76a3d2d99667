package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matheus3301/imsm/internal/tui/views"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args []string
}

// CommandSpec describes one ':' command.
type CommandSpec struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	MinArgs     int
}

// commands is the ':' command table, in help order.
var commands = []CommandSpec{
	{Name: "connect", Description: "Connect the account"},
	{Name: "disconnect", Description: "Disconnect the account"},
	{Name: "chat", Aliases: []string{"open"}, Usage: "<id>", Description: "Open a text channel", MinArgs: 1},
	{Name: "close", Description: "Close the open channel"},
	{Name: "contacts", Description: "Show the roster"},
	{Name: "add", Usage: "<id>...", Description: "Add contacts to the roster", MinArgs: 1},
	{Name: "remove", Aliases: []string{"rm"}, Usage: "<id>...", Description: "Remove contacts from the roster", MinArgs: 1},
	{Name: "presence", Aliases: []string{"away"}, Usage: "<status> [message]", Description: "Set own presence", MinArgs: 1},
	{Name: "pair", Description: "Pair this device"},
	{Name: "help", Aliases: []string{"h"}, Description: "Show help"},
	{Name: "quit", Aliases: []string{"q"}, Description: "Quit"},
}

// ParseCommand parses a command string (without the leading ':') and
// resolves aliases.
func ParseCommand(input string) (Command, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	name := strings.ToLower(fields[0])
	i := slices.IndexFunc(commands, func(c CommandSpec) bool {
		return c.Name == name || slices.Contains(c.Aliases, name)
	})
	if i < 0 {
		return Command{}, fmt.Errorf("unknown command %q", name)
	}
	spec := commands[i]
	cmd := Command{Name: spec.Name, Args: fields[1:]}
	// ":away lunch" is ":presence away lunch".
	if name == "away" {
		cmd.Args = append([]string{"away"}, cmd.Args...)
	}
	if len(cmd.Args) < spec.MinArgs {
		return Command{}, fmt.Errorf("usage: :%s %s", spec.Name, spec.Usage)
	}
	return cmd, nil
}

// commandHelp renders the command table for the help page.
func commandHelp() views.HelpSection {
	section := views.HelpSection{Title: "Commands"}
	for _, c := range commands {
		key := ":" + c.Name
		if c.Usage != "" {
			key += " " + c.Usage
		}
		section.Entries = append(section.Entries, views.HelpEntry{Key: key, Description: c.Description})
	}
	return section
}
