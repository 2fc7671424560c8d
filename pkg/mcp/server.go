package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/resc/pkg/version"
	"github.com/macropower/resc/pkg/watcher"
)

// StdioAddress selects the stdio transport in [Server.Serve].
const StdioAddress = "-"

// WatcherProvider returns the currently configured watchers. Watchers may be
// replaced between calls, e.g. after a configuration reload.
type WatcherProvider interface {
	Watchers() []*watcher.Watcher
}

// Server implements the MCP server for resc.
type Server struct {
	watchers WatcherProvider
	history  *watcher.History
	server   *mcp.Server
	tracer   trace.Tracer
	address  string
}

// NewServer creates a new MCP server instance. The history may be nil, in
// which case recent_events always returns an empty list.
func NewServer(address string, watchers WatcherProvider, history *watcher.History) *Server {
	impl := &mcp.Implementation{
		Name:    name,
		Version: version.GetVersion(),
	}

	s := &Server{
		address:  address,
		watchers: watchers,
		history:  history,
		server:   mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions}),
		tracer:   otel.Tracer("github.com/macropower/resc/pkg/mcp"),
	}

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_rules",
		Description: "List every watched input queue with its rules, in evaluation order.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"inputQueue": {
					Type:        "string",
					Description: "Only list the rules of this input queue. Lists all queues when empty.",
				},
			},
		},
	}, WithTracing(s.tracer, s.handleListRules))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "evaluate_task",
		Description: "Dry-run a task against the rules of an input queue. Returns every matching rule and the tasks it would produce. Property sources are queried, Redis is not modified.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"queue": {
					Type:        "string",
					Description: "The input queue, EXACTLY as listed by list_rules.",
				},
				"task": {
					Type:        "string",
					Description: "The task to evaluate.",
				},
			},
			Required: []string{"queue", "task"},
		},
	}, WithTracing(s.tracer, s.handleEvaluateTask))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "recent_events",
		Description: "List the tasks most recently pushed by the running watchers, newest first.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"limit": {
					Type:        "integer",
					Description: "Maximum number of events to return. Returns all retained events when zero.",
				},
			},
		},
	}, WithTracing(s.tracer, s.handleRecentEvents))
}

func (s *Server) findWatcher(queue string) *watcher.Watcher {
	for _, w := range s.watchers.Watchers() {
		if w.InputQueue() == queue {
			return w
		}
	}

	return nil
}

// Server returns the underlying [mcp.Server].
func (s *Server) Server() *mcp.Server {
	return s.server
}

// Serve starts the MCP server. It serves stdio when the address is
// [StdioAddress] or empty, and streamable HTTP otherwise. HTTP serving stops
// when ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	slog.InfoContext(ctx, "starting MCP server", slog.String("address", s.address))

	if s.address == "" || s.address == StdioAddress {
		err := s.serveStdio(ctx)
		if err != nil {
			return fmt.Errorf("serve stdio: %w", err)
		}

		return nil
	}

	err := s.serveHTTP(ctx)
	if err != nil {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	return nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	server := &http.Server{
		Addr:    s.address,
		Handler: handler,

		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx) //nolint:contextcheck // Outlives ctx.
	}()

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}

func (s *Server) serveStdio(ctx context.Context) error {
	t := mcp.NewLoggingTransport(mcp.NewStdioTransport(), os.Stderr)

	err := s.server.Run(ctx, t)
	if err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}
