package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
)

// Backend names.
const (
	BackendWhatsApp = "whatsapp"
	BackendLoopback = "loopback"
)

// Defaults applied to unset account fields.
const (
	DefaultBackend      = BackendWhatsApp
	DefaultLogLevel     = "info"
	DefaultEventBuffer  = 256
	DefaultNotifyBuffer = 256
	DefaultSendAttempts = 3
)

// Config represents the global ~/.imsm/config.toml.
type Config struct {
	DefaultAccount string             `toml:"default_account"`
	Accounts       map[string]Account `toml:"accounts"`
}

// Account is the [accounts.<name>] table.
type Account struct {
	Backend          string `toml:"backend"`
	SelfID           string `toml:"self_id"`
	LogLevel         string `toml:"log_level"`
	StrictInvariants bool   `toml:"strict_invariants"`
	EventBuffer      int    `toml:"event_buffer"`
	NotifyBuffer     int    `toml:"notify_buffer"`
	SendAttempts     int    `toml:"send_attempts"`
	LoopbackEcho     bool   `toml:"loopback_echo"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields an empty config.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Account returns the settings for name with defaults filled in. An account
// without a table gets the defaults.
func (c *Config) Account(name string) (Account, error) {
	a := c.Accounts[name].withDefaults()
	if err := a.Validate(); err != nil {
		return Account{}, fmt.Errorf("account %s: %w", name, err)
	}
	return a, nil
}

func (a Account) withDefaults() Account {
	if a.Backend == "" {
		a.Backend = DefaultBackend
	}
	if a.LogLevel == "" {
		a.LogLevel = DefaultLogLevel
	}
	if a.EventBuffer <= 0 {
		a.EventBuffer = DefaultEventBuffer
	}
	if a.NotifyBuffer <= 0 {
		a.NotifyBuffer = DefaultNotifyBuffer
	}
	if a.SendAttempts <= 0 {
		a.SendAttempts = DefaultSendAttempts
	}
	return a
}

// Validate checks values that have no sensible fallback.
func (a Account) Validate() error {
	switch a.Backend {
	case BackendWhatsApp, BackendLoopback:
	default:
		return fmt.Errorf("unknown backend %q", a.Backend)
	}
	if _, err := a.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (a Account) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(a.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
