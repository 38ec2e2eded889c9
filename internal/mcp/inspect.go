package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/verdict/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from a verdict_validate result"`
	Stage string `json:"stage,omitempty" jsonschema:"smoke or suite; defaults to the stage that decided the verdict"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	var st *report.Stage
	if params.Stage == "" {
		st = result.LastStage()
	} else {
		st = result.Stage(params.Stage)
	}
	if st == nil {
		return errorResult(fmt.Sprintf("Run %s has no stage %q.", params.RunID, params.Stage))
	}

	return textResult(FormatStage(result, st))
}

// FormatStage renders the raw output of one stage of a run.
func FormatStage(rr *report.RunResult, st *report.Stage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s)\n", rr.ID, rr.Kind)
	fmt.Fprintf(&b, "Stage: %s — %s\n", st.Name, st.Status)
	if st.Status == report.StatusSkipped {
		fmt.Fprintln(&b, "\nThe stage did not run.")
		return b.String()
	}
	if len(st.Command) > 0 {
		fmt.Fprintf(&b, "Command: %s\n", strings.Join(st.Command, " "))
	}
	if st.Dir != "" {
		fmt.Fprintf(&b, "Dir: %s\n", st.Dir)
	}
	fmt.Fprintf(&b, "Exit code: %d\n", st.ExitCode)
	fmt.Fprintln(&b)

	if st.Output == "" {
		fmt.Fprintln(&b, "(no output)")
		return b.String()
	}
	fmt.Fprintln(&b, "Output:")
	for _, line := range strings.Split(strings.TrimRight(st.Output, "\n"), "\n") {
		fmt.Fprintf(&b, "    %s\n", line)
	}
	return b.String()
}
