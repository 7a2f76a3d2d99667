package daemon

import (
	"context"
	"os"
	"time"

	"github.com/matheus3301/imsm/internal/account"
	"github.com/matheus3301/imsm/internal/api"
	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/backend/loopback"
	"github.com/matheus3301/imsm/internal/bus"
	"github.com/matheus3301/imsm/internal/config"
	"github.com/matheus3301/imsm/internal/connection"
	"github.com/matheus3301/imsm/internal/lock"
	"github.com/matheus3301/imsm/internal/logging"
	"github.com/matheus3301/imsm/internal/store"
	"github.com/matheus3301/imsm/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// outboxRetention is how long settled outbox entries are kept.
const outboxRetention = 7 * 24 * time.Hour

// Params holds the resolved account configuration passed to the fx module.
type Params struct {
	Account    string
	Settings   config.Account
	SocketPath string // optional override for testing; empty = use default
	// Console mirrors the log to stderr.
	Console bool
}

// Engine is the protocol backend selected for the account.
type Engine struct {
	Backend backend.Backend
	// SelfID is the user's identifier, empty when not yet known.
	SelfID string
	// AutoConnect is set when the backend can connect without pairing first.
	AutoConnect bool
	Close       func()
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideEngine,
			provideConnection,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	level, err := p.Settings.Level()
	if err != nil {
		return nil, err
	}
	opts := logging.Options{
		Path:    account.LogPath(p.Account),
		Account: p.Account,
		Backend: p.Settings.Backend,
		Level:   level,
	}
	if p.Console {
		opts.Console = os.Stderr
	}
	return logging.New(opts)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := account.EnsureDir(p.Account); err != nil {
		return nil, err
	}
	logger.Info("acquiring account lock", zap.String("account", p.Account))
	l, err := lock.Acquire(account.Dir(p.Account), p.Account)
	if err != nil {
		return nil, err
	}
	logger.Info("account lock acquired")
	return l, nil
}

// provideStore takes the lock so the database is never opened by a second
// daemon for the same account.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := account.AppDBPath(p.Account)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	schema := db.Schema()
	logger.Info("store initialized",
		zap.String("path", dbPath),
		zap.Uint("schema_version", schema.Version),
		zap.Bool("migrated", schema.Applied),
	)
	pruned, err := db.PruneOutbox(time.Now().Add(-outboxRetention))
	if err != nil {
		logger.Warn("outbox prune failed", zap.Error(err))
	} else if pruned > 0 {
		logger.Info("pruned settled outbox entries", zap.Int64("count", pruned))
	}
	return db, nil
}

func provideEngine(p Params, db *store.DB, b *bus.Bus, logger *zap.Logger) (*Engine, error) {
	s := p.Settings
	switch s.Backend {
	case config.BackendLoopback:
		selfID := s.SelfID
		if selfID == "" {
			selfID = connection.DefaultSelfID
		}
		lb := loopback.New(loopback.Options{
			SelfID:        selfID,
			Echo:          s.LoopbackEcho,
			ConfirmRoster: true,
			EventBuffer:   s.EventBuffer,
		}, logger.Named("loopback"))
		return &Engine{Backend: lb, SelfID: selfID, AutoConnect: true, Close: lb.Close}, nil

	default:
		wb, err := wa.New(context.Background(), wa.Options{
			DeviceDBPath: account.DeviceDBPath(p.Account),
			DB:           db,
			SendAttempts: s.SendAttempts,
			EventBuffer:  s.EventBuffer,
		}, b, logger.Named("wa"))
		if err != nil {
			return nil, err
		}
		selfID := s.SelfID
		if selfID == "" {
			selfID = wb.SelfID()
		}
		return &Engine{Backend: wb, SelfID: selfID, AutoConnect: wb.Paired(), Close: wb.Close}, nil
	}
}

func provideConnection(p Params, eng *Engine, b *bus.Bus, logger *zap.Logger) (*connection.Connection, error) {
	return connection.New(connection.Config{
		Account:          p.Account,
		SelfID:           eng.SelfID,
		BasePath:         account.ObjectPath(p.Account),
		StrictInvariants: p.Settings.StrictInvariants,
	}, eng.Backend, b, logger.Named("connection"))
}

func provideService(p Params, conn *connection.Connection, b *bus.Bus, logger *zap.Logger) *api.Service {
	return api.NewService(api.Config{
		Account:     p.Account,
		Backend:     p.Settings.Backend,
		WatchBuffer: p.Settings.NotifyBuffer,
	}, conn, b, logger.Named("api"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, svc *api.Service, lk *lock.Lock, db *store.DB, eng *Engine, conn *connection.Connection, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			conn.Start()

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if eng.AutoConnect {
				go func() {
					if err := conn.Connect(context.Background()); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
					}
				}()
			} else {
				logger.Info("device not paired, waiting for pairing")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			svc.Shutdown()
			srv.Stop(ctx)
			conn.Stop()
			eng.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
