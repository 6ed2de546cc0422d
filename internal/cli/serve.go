package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aretw0/rewind/internal/config"
	httpAdapter "github.com/aretw0/rewind/pkg/adapters/http"
	"github.com/aretw0/rewind/pkg/driver"
	"github.com/aretw0/rewind/pkg/observability"
	"github.com/aretw0/rewind/pkg/registry"
	"github.com/aretw0/rewind/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// eventBuffer is how many lifecycle events a slow /events client may lag.
const eventBuffer = 256

// Serve exposes a session manager over HTTP until ctx is cancelled. Every
// session still open at that point is shut down.
func Serve(ctx context.Context, reg *registry.Registry, opts ServeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger := createLogger(cfg, opts.Debug)

	if err := checkEngine(reg, cfg.Engine); err != nil {
		return err
	}
	interceptor, err := NewInterceptor(cfg)
	if err != nil {
		return err
	}

	journal, err := NewJournal(ctx, cfg.Journal)
	if err != nil {
		return err
	}
	defer closeJournal(journal)

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := driver.NewMetrics(metricsReg)

	events := observability.NewStream(eventBuffer)
	hooks := observability.Combine(createDebugHooks(logger), events.Hooks())

	mgr := session.NewManager(
		NewSessionFactory(driverOptions(cfg, journal, metrics, logger), driver.WithLifecycleHooks(hooks)),
		session.WithLogger(logger),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := mgr.CloseAll(shutdownCtx); err != nil {
			logger.Warn("sessions did not shut down cleanly", "err", err)
		}
	}()

	addr := cfg.HTTP.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	srv := &http.Server{
		Addr: addr,
		Handler: httpAdapter.NewHandler(mgr,
			httpAdapter.WithInterceptor(interceptor),
			httpAdapter.WithGatherer(metricsReg),
			httpAdapter.WithEvents(events),
			httpAdapter.WithLogger(logger),
		),
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting rewind server", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Start shutdown...")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete: %w", err)
		}
		logger.Info("rewind server stopped gracefully")
		return nil
	}
}
