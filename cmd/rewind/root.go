package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rewind",
	Short: "rewind is an interpreter session you can undo",
	Long: `rewind runs a Lua session in which every submitted unit of code is
preceded by a process checkpoint. Undo discards the Worker that applied the
last unit and resumes the checkpoint, without replaying anything.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log at debug level to stderr")
}
