package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/deixis/verdict/internal/config"
	"github.com/deixis/verdict/internal/report"
	"github.com/deixis/verdict/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// stageRunner answers the smoke stage (run from the workspace root) and the
// suite stage (run from its subdirectory) with canned results.
type stageRunner struct {
	smoke *runner.Result
	suite *runner.Result
	calls int
}

func (s *stageRunner) Run(_ context.Context, _ []string, cwd string) (*runner.Result, error) {
	s.calls++
	if cwd == "" {
		if s.smoke != nil {
			return s.smoke, nil
		}
		return &runner.Result{}, nil
	}
	if s.suite != nil {
		return s.suite, nil
	}
	return &runner.Result{}, nil
}

// setup creates a verdict MCP server + client over in-memory transports.
func setup(t *testing.T, r *stageRunner, cfg *config.Config) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	if cfg == nil {
		cfg = &config.Config{}
	}
	store := report.NewLRUStore(5, report.NewDiskStore(t.TempDir()))
	server := NewServer(cfg, r, store, nil)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})

	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func runIDFrom(t *testing.T, text string) string {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		if rest, ok := strings.CutPrefix(line, "Run: "); ok {
			id, _, _ := strings.Cut(rest, " ")
			return id
		}
	}
	t.Fatalf("no Run ID found in output:\n%s", text)
	return ""
}

// --- verdict_validate ---

func TestValidate_Passing(t *testing.T) {
	r := &stageRunner{suite: &runner.Result{Stdout: []byte("=== 311 passed in 9.9s ===\n")}}
	cs := setup(t, r, nil)

	res := callTool(t, cs, "verdict_validate", map[string]any{"interpreter": "python3"})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	for _, want := range []string{"Status: PASS", "Tests Passed: 311", "smoke: pass", "suite: pass"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

func TestValidate_SmokeFailure(t *testing.T) {
	r := &stageRunner{smoke: &runner.Result{ExitCode: 1, Stderr: []byte("Error during smoke test: AssertionError - size\n")}}
	cs := setup(t, r, nil)

	text := resultText(callTool(t, cs, "verdict_validate", map[string]any{"interpreter": "python3"}))
	if !strings.Contains(text, "Status: FAIL") || !strings.Contains(text, "Smoke test failed") {
		t.Errorf("expected smoke failure, got:\n%s", text)
	}
	if !strings.Contains(text, `stage="smoke"`) {
		t.Errorf("expected inspect hint for smoke stage, got:\n%s", text)
	}
	if r.calls != 1 {
		t.Errorf("runner called %d times, want 1", r.calls)
	}
}

func TestValidate_ThresholdOption(t *testing.T) {
	suite := &runner.Result{ExitCode: 1, Stdout: []byte("4 failed, 50 passed\n")}

	cs := setup(t, &stageRunner{suite: suite}, nil)
	text := resultText(callTool(t, cs, "verdict_validate", map[string]any{"interpreter": "python3"}))
	if !strings.Contains(text, "4 tests failed") {
		t.Errorf("default threshold: expected '4 tests failed', got:\n%s", text)
	}

	cs = setup(t, &stageRunner{suite: suite}, nil)
	text = resultText(callTool(t, cs, "verdict_validate", map[string]any{
		"interpreter": "python3",
		"options":     map[string]any{"ACCEPTABLE_FAILURE_THRESHOLD": "5"},
	}))
	if !strings.Contains(text, "Status: PASS") || !strings.Contains(text, "suite: soft-pass") {
		t.Errorf("threshold 5: expected soft pass, got:\n%s", text)
	}
}

func TestValidate_InvalidOption(t *testing.T) {
	cs := setup(t, &stageRunner{}, nil)
	res := callTool(t, cs, "verdict_validate", map[string]any{
		"interpreter": "python3",
		"options":     map[string]any{"ACCEPTABLE_FAILURE_THRESHOLD": "lots"},
	})
	if !res.IsError {
		t.Errorf("expected IsError for invalid threshold, got:\n%s", resultText(res))
	}
}

func TestValidate_MissingInterpreter(t *testing.T) {
	cs := setup(t, &stageRunner{}, nil)
	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "verdict_validate",
		Arguments: map[string]any{},
	})
	if err == nil {
		t.Error("expected error for missing interpreter")
	}
}

// --- verdict_inspect ---

func TestInspect_InvalidRunID(t *testing.T) {
	cs := setup(t, &stageRunner{}, nil)
	res := callTool(t, cs, "verdict_inspect", map[string]any{"run_id": "nonexistent-id"})
	if !res.IsError {
		t.Error("expected IsError for invalid run_id")
	}
}

func TestInspect_AfterFailingRun(t *testing.T) {
	r := &stageRunner{suite: &runner.Result{ExitCode: 2, Stdout: []byte("ERROR: usage: pytest [options]\n")}}
	cs := setup(t, r, nil)

	valText := resultText(callTool(t, cs, "verdict_validate", map[string]any{"interpreter": "python3"}))
	if !strings.Contains(valText, "Critical pytest error") {
		t.Fatalf("expected critical error, got:\n%s", valText)
	}
	runID := runIDFrom(t, valText)

	res := callTool(t, cs, "verdict_inspect", map[string]any{"run_id": runID})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	for _, want := range []string{"Stage: suite", "Exit code: 2", "usage: pytest"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in inspect output, got:\n%s", want, text)
		}
	}

	res = callTool(t, cs, "verdict_inspect", map[string]any{"run_id": runID, "stage": "lint"})
	if !res.IsError {
		t.Error("expected IsError for unknown stage")
	}
}

func TestInspect_SkippedStage(t *testing.T) {
	r := &stageRunner{smoke: &runner.Result{ExitCode: 1}}
	cs := setup(t, r, nil)
	runID := runIDFrom(t, resultText(callTool(t, cs, "verdict_validate", map[string]any{"interpreter": "python3"})))

	text := resultText(callTool(t, cs, "verdict_inspect", map[string]any{"run_id": runID, "stage": "suite"}))
	if !strings.Contains(text, "did not run") {
		t.Errorf("expected skipped stage message, got:\n%s", text)
	}
}

// --- verdict_runs ---

func TestRuns(t *testing.T) {
	cs := setup(t, &stageRunner{}, nil)

	text := resultText(callTool(t, cs, "verdict_runs", nil))
	if !strings.Contains(text, "No runs yet") {
		t.Errorf("expected empty listing, got:\n%s", text)
	}

	runID := runIDFrom(t, resultText(callTool(t, cs, "verdict_validate", map[string]any{"interpreter": "python3"})))
	text = resultText(callTool(t, cs, "verdict_runs", nil))
	if !strings.Contains(text, runID) {
		t.Errorf("expected %s in listing, got:\n%s", runID, text)
	}
}
