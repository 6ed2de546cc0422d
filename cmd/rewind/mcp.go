package main

import (
	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/internal/cli"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts one session and exposes it as MCP tools (submit, undo, inspect,
history), so AI agents can experiment and take back what did not work.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		sessionID, _ := cmd.Flags().GetString("session")
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		return cli.RunMCP(cmd.Context(), rewind.Engines(), cli.MCPOptions{
			ConfigPath: configPath,
			SessionID:  sessionID,
			Transport:  transport,
			Port:       port,
			Debug:      debug,
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("session", "", "Session ID (default: a new UUIDv7)")
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
