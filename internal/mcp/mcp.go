// Package mcp provides the cmdrun MCP server, registering the run, list
// and inspect tools and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/deixis/cmdrun"
	"github.com/deixis/cmdrun/internal/config"
	"github.com/deixis/cmdrun/internal/report"
	"github.com/deixis/cmdrun/internal/runner"
	"github.com/deixis/cmdrun/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers. The default
// engine is never mutated; sessions whose client reports a root get an
// engine of their own.
type handler struct {
	engine *workflow.Engine
	runner *runner.Runner // template for per-session runners
	store  report.Store
	server *mcp.Server

	mu       sync.Mutex
	sessions map[*mcp.ServerSession]*workflow.Engine
}

// NewServer creates an MCP server with all cmdrun tools registered.
// Runs are recorded in store so cmd_inspect can read them back.
func NewServer(cfg *config.Config, r *runner.Runner, store report.Store, logger *slog.Logger) *mcp.Server {
	_, s := newServer(cfg, r, store, logger)
	return s
}

func newServer(cfg *config.Config, r *runner.Runner, store report.Store, logger *slog.Logger) (*handler, *mcp.Server) {
	h := &handler{
		engine: &workflow.Engine{
			Config: cfg,
			Runner: r,
			Root:   r.Workspace,
			Store:  store,
			Logger: logger,
		},
		runner:   r,
		store:    store,
		sessions: make(map[*mcp.ServerSession]*workflow.Engine),
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "cmdrun", Version: cmdrun.Version}, opts)
	h.server = s

	mcp.AddTool(s, &mcp.Tool{
		Name: "cmd_run",
		Description: `Run a command and wait for it to exit.

Pass either argv (program followed by arguments, no shell) or the name of a configured preset.
A non-zero exit is reported as Status: FAIL with the command's stderr; it is not a tool error.
Output is capped in the response; the full run is stored for cmd_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "cmd_list",
		Description: "List the command presets configured in the workspace's .cmdrun file.",
	}, h.listHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cmd_inspect",
		Description: `Read the stored output of a cmd_run.

Use the run_id from the cmd_run result. stream selects stdout or stderr (default: stdout for
successful runs, stderr for failed ones); filter keeps only lines containing the given text.`,
	}, h.inspectHandler)

	return h, s
}

// updateWorkspaceFromRoots queries the client for MCP roots and, if a
// valid root is returned, gives the session its own engine and runner
// bounded to that root. The .cmdrun file may live above the root; its
// directory only anchors preset dirs.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := filepath.Clean(u.Path)

	loaded, err := config.Load(workspace)
	if err != nil {
		return
	}

	engine := &workflow.Engine{
		Config: loaded.Config,
		Runner: &runner.Runner{
			Workspace: workspace,
			Timeout:   loaded.Config.Timeout(),
			MaxOutput: loaded.Config.MaxOutputBytes(),
			Logger:    h.runner.Logger,
		},
		Root:   loaded.Root,
		Store:  h.engine.Store,
		Logger: h.engine.Logger,
	}
	h.setSessionEngine(session, engine)
}

// setSessionEngine records engine for session and forgets sessions the
// server no longer holds.
func (h *handler) setSessionEngine(session *mcp.ServerSession, engine *workflow.Engine) {
	live := make(map[*mcp.ServerSession]bool)
	for ss := range h.server.Sessions() {
		live[ss] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ss := range h.sessions {
		if !live[ss] {
			delete(h.sessions, ss)
		}
	}
	h.sessions[session] = engine
}

// engineFor returns the engine serving session.
func (h *handler) engineFor(session *mcp.ServerSession) *workflow.Engine {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.sessions[session]; ok {
		return e
	}
	return h.engine
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
