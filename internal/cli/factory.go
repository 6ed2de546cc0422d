package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/rewind/internal/config"
	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/pkg/adapters/file"
	"github.com/aretw0/rewind/pkg/adapters/memory"
	"github.com/aretw0/rewind/pkg/adapters/redis"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/driver"
	"github.com/aretw0/rewind/pkg/persistence/middleware"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/registry"
	"github.com/aretw0/rewind/pkg/runner"
	"github.com/aretw0/rewind/pkg/session"
)

// createLogger configures the application logger from the config. Debug
// forces the debug level regardless of log.level.
func createLogger(cfg *config.Config, debug bool) *slog.Logger {
	level := logging.ParseLevel(cfg.Log.Level)
	if debug {
		level = slog.LevelDebug
	}
	return logging.NewWithFormat(os.Stderr, level, cfg.Log.Format)
}

// NewJournal opens the journal backend selected by cfg, wrapped in the
// redaction and encryption layers it enables.
func NewJournal(ctx context.Context, cfg config.JournalConfig) (ports.Journal, error) {
	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		redact, err := middleware.NewRedactMiddleware(cfg.Redact)
		if err != nil {
			closeJournal(backend)
			return nil, fmt.Errorf("invalid journal.redact: %w", err)
		}
		mws = append(mws, redact)
	}
	active, fallback, err := cfg.Keys()
	if err != nil {
		closeJournal(backend)
		return nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	if len(mws) == 0 {
		return backend, nil
	}
	return &layeredJournal{Journal: middleware.Chain(backend, mws...), backend: backend}, nil
}

// layeredJournal keeps the backend reachable so it can still be closed.
type layeredJournal struct {
	ports.Journal
	backend ports.Journal
}

func (l *layeredJournal) Close() error {
	if c, ok := l.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func newBackend(ctx context.Context, cfg config.JournalConfig) (ports.Journal, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return memory.NewStore(), nil
	case config.BackendFile:
		return file.New(cfg.Path), nil
	case config.BackendRedis:
		var opts []redis.Option
		if cfg.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.TTL))
		}
		store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, opts...)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}

// NewInterceptor builds the submission policy from the configured deny list.
func NewInterceptor(cfg *config.Config) (runner.UnitInterceptor, error) {
	if len(cfg.Policy.Deny) == 0 {
		return runner.AutoApproveMiddleware(), nil
	}
	return runner.DenyPatternsMiddleware(cfg.Policy.Deny...)
}

// driverOptions maps the configuration onto Driver options shared by every
// session of the process.
func driverOptions(cfg *config.Config, journal ports.Journal, metrics *driver.Metrics, logger *slog.Logger) []driver.Option {
	opts := []driver.Option{
		driver.WithEngine(cfg.Engine),
		driver.WithMaxHistory(cfg.MaxHistory),
		driver.WithResponseTimeout(cfg.ResponseTimeout),
		driver.WithSyncApply(cfg.SyncApply),
		driver.WithLogger(logger),
		driver.WithWorkerLogLevel(cfg.Log.Level),
		driver.WithJournal(journal),
		driver.WithLifecycleHooks(createDebugHooks(logger)),
	}
	if metrics != nil {
		opts = append(opts, driver.WithMetrics(metrics))
	}
	return opts
}

// NewSessionFactory returns a session.Factory that starts one Driver per
// session with the shared options plus extra.
func NewSessionFactory(base []driver.Option, extra ...driver.Option) session.Factory {
	return func(ctx context.Context, id string) (ports.Session, error) {
		opts := append(append(append([]driver.Option{}, base...), extra...), driver.WithSessionID(id))
		return driver.Start(ctx, opts...)
	}
}

// checkEngine fails early when the configured engine is not compiled in.
func checkEngine(reg *registry.Registry, name string) error {
	if !reg.Has(name) {
		return fmt.Errorf("%w: %s (available: %v)", domain.ErrUnknownEngine, name, reg.Names())
	}
	return nil
}

// incompleteChecker returns the engine's multi-line probe, if it has one.
func incompleteChecker(reg *registry.Registry, name string) ports.IncompleteChecker {
	engine, err := reg.New(name)
	if err != nil {
		return nil
	}
	checker, _ := engine.(ports.IncompleteChecker)
	return checker
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCheckpoint: func(ctx context.Context, e *domain.SnapshotEvent) {
			logger.Debug("Checkpoint", "session_id", e.SessionID, "snapshot", e.PID)
		},
		OnRestore: func(ctx context.Context, e *domain.SnapshotEvent) {
			logger.Debug("Restore", "session_id", e.SessionID, "snapshot", e.PID)
		},
		OnPrune: func(ctx context.Context, e *domain.SnapshotEvent) {
			logger.Debug("Prune", "session_id", e.SessionID, "snapshot", e.PID)
		},
		OnApply: func(ctx context.Context, e *domain.ApplyEvent) {
			if e.Failure != "" {
				logger.Debug("Apply (Failure)", "session_id", e.SessionID, "err", e.Failure)
			} else {
				logger.Debug("Apply (Success)", "session_id", e.SessionID, "duration", e.Duration)
			}
		},
		OnAbort: func(ctx context.Context, e *domain.AbortEvent) {
			logger.Warn("Session aborted", "session_id", e.SessionID, "reason", e.Reason, "err", e.Err)
		},
	}
}
