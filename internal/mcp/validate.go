package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/verdict/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type validateParams struct {
	Interpreter string            `json:"interpreter" jsonschema:"path to the interpreter executable used to run the smoke test and the test suite (e.g. /usr/bin/python3)"`
	Options     map[string]string `json:"options,omitempty" jsonschema:"configuration mapping; recognized key: ACCEPTABLE_FAILURE_THRESHOLD (integer, default 0)"`
}

func (h *handler) validateHandler(ctx context.Context, req *mcp.CallToolRequest, params validateParams) (*mcp.CallToolResult, any, error) {
	if params.Interpreter == "" {
		return errorResult("interpreter is required")
	}

	cfg, r := h.snapshot()
	if err := cfg.Apply(params.Options); err != nil {
		return errorResult(fmt.Sprintf("invalid options: %v", err))
	}

	eng, err := workflow.NewEngine(&cfg, r, h.logger)
	if err != nil {
		return errorResult(fmt.Sprintf("validate failed: %v", err))
	}

	v, err := eng.Validate(ctx, params.Interpreter)
	if err != nil {
		return errorResult(fmt.Sprintf("validate failed: %v", err))
	}

	// Save results for verdict_inspect.
	if err := h.store.Save(v.RunResult); err != nil {
		h.logger.WarnContext(ctx, "saving run result", "run_id", v.RunResult.ID, "error", err)
	}

	return textResult(formatVerdict(v))
}

func formatVerdict(v *workflow.Verdict) string {
	var b strings.Builder
	rr := v.RunResult

	fmt.Fprint(&b, rr.Describe())
	fmt.Fprintln(&b)

	if v.Success {
		fmt.Fprintln(&b, "The change is acceptable.")
	} else {
		stage := "suite"
		if last := rr.LastStage(); last != nil {
			stage = last.Name
		}
		fmt.Fprintf(&b, "Inspect with verdict_inspect(run_id=%q, stage=%q).\n", rr.ID, stage)
	}
	return b.String()
}
