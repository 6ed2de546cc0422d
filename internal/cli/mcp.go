package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/aretw0/rewind/internal/config"
	"github.com/aretw0/rewind/pkg/adapters/mcp"
	"github.com/aretw0/rewind/pkg/driver"
	"github.com/aretw0/rewind/pkg/registry"
	"github.com/aretw0/rewind/pkg/session"
)

// RunMCP serves one session as MCP tools over stdio or SSE.
func RunMCP(ctx context.Context, reg *registry.Registry, opts MCPOptions) error {
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

	base := driverOptions(cfg, journal, nil, logger)
	if opts.Transport == "stdio" {
		// Ensure Worker output doesn't corrupt JSON-RPC on Stdout
		log.SetOutput(os.Stderr)
		base = append(base, driver.WithWorkerOutput(os.Stderr, os.Stderr))
	}

	mgr := session.NewManager(NewSessionFactory(base), session.WithLogger(logger))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := mgr.CloseAll(shutdownCtx); err != nil {
			logger.Warn("sessions did not shut down cleanly", "err", err)
		}
	}()

	sess, err := mgr.Create(ctx, opts.SessionID)
	if err != nil {
		return err
	}
	srv := mcp.NewServer(mgr, sess.ID(), mcp.WithInterceptor(interceptor))

	switch opts.Transport {
	case "stdio":
		logger.Info("Starting rewind MCP Server (Stdio)...", "session_id", sess.ID())
		if err := srv.ServeStdio(); err != nil {
			return fmt.Errorf("MCP server execution failed: %w", err)
		}
		return nil
	case "sse":
		logger.Info("Starting rewind MCP Server (SSE)", "port", opts.Port, "session_id", sess.ID())
		if err := srv.ServeSSE(ctx, opts.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("MCP server execution failed: %w", err)
		}
		logger.Info("MCP Server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", opts.Transport)
	}
}
