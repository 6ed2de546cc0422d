package main

import (
	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves independent sessions over a JSON API. Each session is created
with POST /sessions and owns its own Worker and checkpoints. Prometheus
metrics are exposed on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		addr, _ := cmd.Flags().GetString("addr")

		return cli.Serve(cmd.Context(), rewind.Engines(), cli.ServeOptions{
			ConfigPath: configPath,
			Addr:       addr,
			Debug:      debug,
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides http.addr)")
}
