// Package mcp provides the verdict MCP server, registering the validation
// tools and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/deixis/verdict"
	"github.com/deixis/verdict/internal/config"
	"github.com/deixis/verdict/internal/logging"
	"github.com/deixis/verdict/internal/report"
	"github.com/deixis/verdict/internal/runner"
	"github.com/deixis/verdict/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu     sync.Mutex // guards cfg and runner, which roots may replace
	cfg    *config.Config
	runner workflow.CommandRunner
	store  report.Store
	logger *slog.Logger
}

// NewServer creates an MCP server with all verdict tools registered.
func NewServer(cfg *config.Config, r workflow.CommandRunner, store report.Store, logger *slog.Logger) *mcp.Server {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	h := &handler{
		cfg:    cfg,
		runner: r,
		store:  store,
		logger: logger,
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
	s := mcp.NewServer(&mcp.Implementation{Name: "verdict", Version: verdict.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "verdict_validate",
		Description: `Decide whether the current change to the image library is acceptable.

Runs the smoke test with the given interpreter, then the full test suite, and applies the
failure threshold. Returns PASS or FAIL with a summary. Results are stored for
drill-down via verdict_inspect.`,
	}, h.validateHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "verdict_inspect",
		Description: `Show the raw output of a stage from a verdict_validate run.

Use the run_id from the verdict_validate output. Stage is "smoke" or "suite";
it defaults to the stage that decided the verdict.`,
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "verdict_runs",
		Description: "List the IDs of recent validation runs, most recent first.",
	}, h.runsHandler)

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and, if a file
// root is returned, reloads the configuration from it and points the runner
// at it. Called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		h.logger.WarnContext(ctx, "ignoring workspace root", slog.String("root", workspace), slog.Any("error", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = loaded.Config
	if r, ok := h.runner.(*runner.Runner); ok {
		h.runner = &runner.Runner{
			Workspace: workspace,
			Timeout:   loaded.Config.Timeout(),
			MaxOutput: loaded.Config.MaxOutputBytes(),
			Logger:    r.Logger,
		}
	}
	h.logger.InfoContext(ctx, "workspace set from client root", slog.String("root", workspace))
}

// snapshot returns the current configuration and runner.
func (h *handler) snapshot() (config.Config, workflow.CommandRunner) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.cfg, h.runner
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
