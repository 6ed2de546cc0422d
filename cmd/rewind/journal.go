package main

import (
	"errors"

	"github.com/aretw0/rewind/internal/cli"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Manage recorded session transcripts",
	Long:  `List, inspect, and remove the transcripts kept by the configured journal backend.`,
}

var journalLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List sessions with a transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		journal, err := cli.OpenJournal(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		defer cli.CloseJournal(journal)

		return cli.ListJournal(cmd.Context(), journal, cmd.OutOrStdout())
	},
}

var journalInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the transcript of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		format, _ := cmd.Flags().GetString("format")
		journal, err := cli.OpenJournal(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		defer cli.CloseJournal(journal)

		return cli.InspectJournal(cmd.Context(), journal, args[0], format, cmd.OutOrStdout())
	},
}

var journalRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more transcripts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		journal, err := cli.OpenJournal(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		defer cli.CloseJournal(journal)

		if !cli.RemoveJournal(cmd.Context(), journal, args, cmd.OutOrStdout()) {
			return errors.New("some transcripts could not be removed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalLsCmd)
	journalCmd.AddCommand(journalInspectCmd)
	journalCmd.AddCommand(journalRmCmd)

	journalInspectCmd.Flags().StringP("format", "f", cli.FormatText, "Output format: text, json or mermaid")
}
