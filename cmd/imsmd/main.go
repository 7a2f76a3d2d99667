package main

import (
	"fmt"
	"os"

	"github.com/matheus3301/imsm/internal/account"
	"github.com/matheus3301/imsm/internal/config"
	"github.com/matheus3301/imsm/internal/daemon"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	accountFlag := pflag.StringP("account", "a", "", "account name (overrides config default)")
	backendFlag := pflag.String("backend", "", "protocol backend: whatsapp|loopback (overrides config)")
	levelFlag := pflag.String("log-level", "", "log level: debug|info|warn|error (overrides config)")
	selfFlag := pflag.String("self-id", "", "own identifier (overrides config)")
	consoleFlag := pflag.Bool("console", true, "mirror the log to stderr")
	pflag.Parse()

	name := account.Resolve(*accountFlag)
	if err := account.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(account.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: read config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Accounts == nil {
		cfg.Accounts = map[string]config.Account{}
	}
	settings := cfg.Accounts[name]
	if *backendFlag != "" {
		settings.Backend = *backendFlag
	}
	if *levelFlag != "" {
		settings.LogLevel = *levelFlag
	}
	if *selfFlag != "" {
		settings.SelfID = *selfFlag
	}
	cfg.Accounts[name] = settings

	resolved, err := cfg.Account(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Account: name, Settings: resolved, Console: *consoleFlag}),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)

	app.Run()
}
