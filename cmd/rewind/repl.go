package main

import (
	"os"
	"path/filepath"

	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/internal/cli"
	"github.com/spf13/cobra"
)

// replCmd represents the repl command
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session",
	Long: `Starts a session and reads units of code from standard input.
Type :undo (or !!) to undo the last unit and :help for the other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		sessionID, _ := cmd.Flags().GetString("session")
		jsonMode, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")
		history, _ := cmd.Flags().GetString("history")

		return cli.RunSession(cmd.Context(), rewind.Engines(), cli.RunOptions{
			ConfigPath:  configPath,
			SessionID:   sessionID,
			JSON:        jsonMode,
			Quiet:       quiet,
			Debug:       debug,
			HistoryFile: history,
		})
	},
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".rewind_history")
}

func init() {
	rootCmd.AddCommand(replCmd)

	replCmd.Flags().String("session", "", "Session ID (default: a new UUIDv7)")
	replCmd.Flags().Bool("json", false, "Run in JSON mode (JSON-lines input/output)")
	replCmd.Flags().BoolP("quiet", "q", false, "No prompts or banner (for piped input)")
	replCmd.Flags().String("history", defaultHistoryFile(), "Line history file for interactive terminals")

	// Make 'repl' the default if no command is provided
	rootCmd.Flags().AddFlagSet(replCmd.Flags())
	rootCmd.RunE = replCmd.RunE
}
