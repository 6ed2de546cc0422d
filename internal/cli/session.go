package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/internal/config"
	"github.com/aretw0/rewind/internal/presentation/tui"
	"github.com/aretw0/rewind/pkg/driver"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/registry"
	"github.com/aretw0/rewind/pkg/runner"
	"golang.org/x/term"
)

// shutdownTimeout bounds the teardown of a session once the front end exits.
const shutdownTimeout = 5 * time.Second

// RunSession runs the REPL against a fresh session until the user quits.
func RunSession(ctx context.Context, reg *registry.Registry, opts RunOptions) error {
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

	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	driverOpts := driverOptions(cfg, journal, nil, logger)
	if opts.SessionID != "" {
		driverOpts = append(driverOpts, driver.WithSessionID(opts.SessionID))
	}
	sess, err := driver.Start(ctx, driverOpts...)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := sess.Shutdown(shutdownCtx); err != nil {
			logger.Warn("session did not shut down cleanly", "session_id", sess.ID(), "err", err)
		}
	}()

	runnerOpts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithInterceptor(interceptor),
		runner.WithIncompleteChecker(incompleteChecker(reg, cfg.Engine)),
	}

	switch {
	case opts.JSON:
		runnerOpts = append(runnerOpts, runner.WithInputHandler(runner.NewJSONHandler(in, out)))
	case !opts.Quiet && isTerminal(in):
		handler := runner.NewLinerHandler(out,
			runner.WithLinerHistory(opts.HistoryFile),
			runner.WithLinerRenderer(tui.NewRenderer()),
		)
		defer handler.Close()
		runnerOpts = append(runnerOpts,
			runner.WithInputHandler(handler),
			runner.WithBanner(tui.Banner(rewind.Version, sess.ID())),
		)
	default:
		runnerOpts = append(runnerOpts, runner.WithInputHandler(runner.NewTextHandler(in, out,
			runner.WithTextHandlerQuiet(opts.Quiet),
		)))
	}

	logger.Info("Session Created", "session_id", sess.ID(), "engine", cfg.Engine)
	return runner.NewRunner(runnerOpts...).Run(ctx, sess)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func closeJournal(journal ports.Journal) {
	if c, ok := journal.(io.Closer); ok {
		_ = c.Close()
	}
}
