package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/runner"
	"github.com/aretw0/rewind/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SubmitResponse is the structured result of the submit tool.
type SubmitResponse struct {
	SessionID string `json:"session_id" jsonschema_description:"The session the unit ran in"`
	Output    string `json:"output" jsonschema_description:"What the unit printed or evaluated to"`
	Failure   string `json:"failure,omitempty" jsonschema_description:"Execution failure, if any. The unit can still be undone"`
	Depth     int    `json:"depth" jsonschema_description:"Number of units that can be undone"`
}

// Server exposes rewind sessions as MCP tools.
type Server struct {
	sessions       *session.Manager
	defaultSession string
	interceptor    runner.UnitInterceptor
	mcpServer      *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithInterceptor sets the policy applied to every submitted unit.
func WithInterceptor(i runner.UnitInterceptor) Option {
	return func(s *Server) {
		s.interceptor = i
	}
}

// NewServer creates a new MCP Server instance. Tools called without a
// session_id argument operate on defaultSession.
func NewServer(mgr *session.Manager, defaultSession string, opts ...Option) *Server {
	s := &Server{
		sessions:       mgr,
		defaultSession: defaultSession,
		interceptor:    runner.AutoApproveMiddleware(),
		mcpServer:      server.NewMCPServer("rewind-mcp", strings.TrimSpace(rewind.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		slog.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	sessionArg := mcp.WithString("session_id", mcp.Description("Session to operate on (optional)"))

	// TOOL: submit
	submitTool := mcp.NewTool("submit",
		mcp.WithDescription("Checkpoint the session and run a unit of code in it."),
		mcp.WithString("payload", mcp.Required(), mcp.Description("Source code of the unit")),
		sessionArg,
		mcp.WithOutputSchema[SubmitResponse](),
	)
	s.mcpServer.AddTool(submitTool, mcp.NewStructuredToolHandler(s.handleSubmit))

	// TOOL: undo
	s.mcpServer.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Restore the session to the checkpoint taken before the last unit."),
		sessionArg,
	), s.handleUndo)

	// TOOL: inspect
	s.mcpServer.AddTool(mcp.NewTool("inspect",
		mcp.WithDescription("Return the variable bindings of the session as JSON."),
		sessionArg,
	), s.handleInspect)

	// TOOL: history
	s.mcpServer.AddTool(mcp.NewTool("history",
		mcp.WithDescription("List the units that can still be undone, oldest first."),
		sessionArg,
	), s.handleHistory)
}

func (s *Server) sessionID(args map[string]any) string {
	if id, ok := args["session_id"].(string); ok && id != "" {
		return id
	}
	return s.defaultSession
}

// Handler methods for structured tools

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SubmitResponse, error) {
	id := s.sessionID(args)
	payload, _ := args["payload"].(string)

	clean, err := runner.SanitizeInput(payload)
	if err != nil {
		slog.Warn("MCP Submit: Input rejected", "error", err, "size", len(payload))
		return SubmitResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	if strings.TrimSpace(clean) == "" {
		return SubmitResponse{}, errors.New("input rejected: empty payload")
	}

	allowed, reason, err := s.interceptor(ctx, clean)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("policy error: %w", err)
	}
	if !allowed {
		slog.Warn("MCP Submit: Unit denied", "session_id", id, "reason", reason)
		return SubmitResponse{}, fmt.Errorf("unit denied: %s", reason)
	}

	var res domain.Result
	err = s.sessions.With(ctx, id, func(ctx context.Context, sess ports.Session) error {
		var err error
		res, err = sess.Submit(ctx, clean)
		return err
	})
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("submit failed: %w", err)
	}

	return SubmitResponse{
		SessionID: id,
		Output:    res.Output,
		Failure:   res.Failure,
		Depth:     res.Depth,
	}, nil
}

func (s *Server) handleUndo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := s.sessionID(request.GetArguments())
	var depth int
	err := s.sessions.With(ctx, id, func(ctx context.Context, sess ports.Session) error {
		if err := sess.Undo(ctx); err != nil {
			return err
		}
		depth = sess.Depth()
		return nil
	})
	if errors.Is(err, domain.ErrEmptyHistory) {
		return mcp.NewToolResultError("nothing to undo"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("undo failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("undone (depth %d)", depth)), nil
}

func (s *Server) handleInspect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := s.sessionID(request.GetArguments())
	var bindings map[string]any
	err := s.sessions.With(ctx, id, func(ctx context.Context, sess ports.Session) error {
		var err error
		bindings, err = sess.Environment(ctx)
		return err
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("inspect failed: %v", err)), nil
	}
	if bindings == nil {
		bindings = map[string]any{}
	}
	jsonBytes, _ := json.Marshal(bindings)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := s.sessionID(request.GetArguments())
	entries, err := s.transcript(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history failed: %v", err)), nil
	}
	jsonBytes, _ := json.Marshal(entries)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) transcript(ctx context.Context, id string) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := s.sessions.With(ctx, id, func(ctx context.Context, sess ports.Session) error {
		var err error
		entries, err = sess.Transcript(ctx)
		return err
	})
	if entries == nil {
		entries = []domain.Entry{}
	}
	return entries, err
}

func (s *Server) registerResources() {
	// EXPOSE: rewind://history
	s.mcpServer.AddResource(mcp.NewResource("rewind://history", "Transcript of the default session",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		entries, err := s.transcript(ctx, s.defaultSession)
		if err != nil {
			return nil, fmt.Errorf("failed to read transcript: %w", err)
		}
		jsonBytes, _ := json.Marshal(entries)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "rewind://history",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
