// Package logging builds the daemon's zap logger.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures a daemon logger.
type Options struct {
	// Path is the JSON log file. Parent directories are created.
	Path    string
	Account string
	Backend string
	Level   zapcore.Level
	// Console, when set, also receives human-readable output. A daemon
	// started from the TUI leaves it nil so logs stay off the screen.
	Console zapcore.WriteSyncer
}

// New creates a zap logger that writes JSON lines to opts.Path and, when
// configured, console output to opts.Console. Account, backend and PID are
// attached to every entry.
func New(opts Options) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), opts.Level),
	}
	if opts.Console != nil {
		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), opts.Console, opts.Level))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.Fields(
			zap.String("account", opts.Account),
			zap.String("backend", opts.Backend),
			zap.Int("pid", os.Getpid()),
		),
	), nil
}
