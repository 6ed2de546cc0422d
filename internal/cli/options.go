package cli

import "io"

// RunOptions contains all the configuration for the REPL command.
type RunOptions struct {
	ConfigPath  string
	SessionID   string
	JSON        bool
	Quiet       bool
	Debug       bool
	HistoryFile string

	// In and Out default to Stdin and Stdout.
	In  io.Reader
	Out io.Writer
}

// ServeOptions configures the HTTP server.
type ServeOptions struct {
	ConfigPath string
	Addr       string // Overrides http.addr when set
	Debug      bool
}

// MCPOptions configures the MCP server.
type MCPOptions struct {
	ConfigPath string
	SessionID  string
	Transport  string
	Port       int
	Debug      bool
}
