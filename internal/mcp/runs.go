package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type runsParams struct{}

// recentLister is implemented by stores that track recent runs.
type recentLister interface {
	Recent() []string
}

func (h *handler) runsHandler(ctx context.Context, req *mcp.CallToolRequest, _ runsParams) (*mcp.CallToolResult, any, error) {
	lister, ok := h.store.(recentLister)
	if !ok {
		return errorResult("this server's result store does not track recent runs")
	}
	ids := lister.Recent()
	if len(ids) == 0 {
		return textResult("No runs yet. Call verdict_validate first.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent runs (%d):\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	return textResult(b.String())
}
