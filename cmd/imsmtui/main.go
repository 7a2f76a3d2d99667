package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/matheus3301/imsm/internal/account"
	"github.com/matheus3301/imsm/internal/lock"
	"github.com/matheus3301/imsm/internal/tui"
	"github.com/matheus3301/imsm/internal/tui/client"
	"github.com/spf13/pflag"
)

func main() {
	accountFlag := pflag.StringP("account", "a", "", "account name (overrides config default)")
	noStart := pflag.Bool("no-start", false, "do not start the daemon if it is not running")
	pflag.Parse()

	name := account.Resolve(*accountFlag)
	if err := account.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	socketPath := account.SocketPath(name)
	if !client.Probe(socketPath) {
		if *noStart {
			fmt.Fprintf(os.Stderr, "daemon not running for account %q\n", name)
			os.Exit(1)
		}
		if owner, ok := lock.ReadOwner(account.Dir(name)); ok && owner.Alive() {
			fmt.Fprintf(os.Stderr, "daemon for account %q is starting (PID %d), waiting...\n", name, owner.PID)
		} else {
			fmt.Fprintf(os.Stderr, "daemon not running for account %q, starting...\n", name)
			if err := startDaemon(name); err != nil {
				fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
				os.Exit(1)
			}
		}
		if !client.WaitReady(socketPath, 10*time.Second) {
			fmt.Fprintf(os.Stderr, "daemon did not become ready, see %s\n", account.LogPath(name))
			os.Exit(1)
		}
	}

	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to daemon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	app := tui.NewApp(c, name)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// startDaemon launches imsmd from next to this binary, or from PATH.
func startDaemon(name string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	imsmd := filepath.Join(filepath.Dir(executable), "imsmd")
	if _, err := os.Stat(imsmd); err != nil {
		imsmd = "imsmd"
	}

	cmd := exec.Command(imsmd, "--account", name, "--console=false")
	// Own session, so closing the terminal does not take the daemon down.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	// The daemon outlives the TUI; reap it if it exits first.
	go func() { _ = cmd.Wait() }()
	return nil
}
