// Package workflow provides the validation engine: it runs the smoke test
// and the full test suite through a CommandRunner, applies the failure
// threshold, and turns the outcome into a Verdict. It is consumed by both
// the MCP server and the CLI.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/deixis/verdict/internal/config"
	"github.com/deixis/verdict/internal/logging"
	"github.com/deixis/verdict/internal/metrics"
	"github.com/deixis/verdict/internal/report"
	"github.com/deixis/verdict/internal/runner"
)

// CommandRunner executes commands within a workspace.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// Engine holds shared dependencies for validation runs.
type Engine struct {
	Config *config.Config
	Runner CommandRunner
	Parser metrics.Parser
	Logger *slog.Logger
}

// NewEngine returns an Engine whose parser matches the configured suite format.
func NewEngine(cfg *config.Config, r CommandRunner, logger *slog.Logger) (*Engine, error) {
	p, err := metrics.New(cfg.SuiteFormat())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{Config: cfg, Runner: r, Parser: p, Logger: logger}, nil
}

// Verdict is the outcome of a validation run.
type Verdict struct {
	Success bool
	// Summary is a human-readable message; empty means none.
	Summary string
	// Log is the raw stdout+stderr of the stage that decided the verdict.
	Log string

	RunResult *report.RunResult
}

// Summary messages.
const (
	SummarySmokeFailed     = "Smoke test failed"
	SummaryCriticalFailure = "Critical pytest failure"
	SummaryCriticalError   = "Critical pytest error"
	SummaryNoMetrics       = "Metrics not available, but validation passed."
)

// FailedSummary is the summary of a run with more failures than tolerated.
func FailedSummary(n int) string {
	return fmt.Sprintf("%d tests failed", n)
}

// MetricsSummary is the summary of a successful run with a known pass count.
func MetricsSummary(passed int) string {
	return fmt.Sprintf("Performance Metrics:\n- Tests Passed: %d", passed)
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logging.Discard()
}

func (e *Engine) parser() metrics.Parser {
	if e.Parser != nil {
		return e.Parser
	}
	return metrics.Pytest{}
}

// echoOutput logs stage output: stdout cut to the configured excerpt, stderr in full.
func (e *Engine) echoOutput(ctx context.Context, log *slog.Logger, res *runner.Result) {
	if len(res.Stdout) > 0 {
		log.InfoContext(ctx, "stdout", slog.String("output", excerpt(string(res.Stdout), e.Config.LogExcerpt())))
	}
	if len(res.Stderr) > 0 {
		log.InfoContext(ctx, "stderr", slog.String("output", string(res.Stderr)))
	}
	if res.Truncated {
		log.WarnContext(ctx, "output exceeded the capture limit and was truncated")
	}
}

// excerpt keeps the first n characters of s.
func excerpt(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + "..."
		}
		i++
	}
	return s
}
