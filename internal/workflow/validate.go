package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/deixis/verdict/internal/logging"
	"github.com/deixis/verdict/internal/metrics"
	"github.com/deixis/verdict/internal/report"
	"github.com/google/uuid"
)

// Exit codes of the full suite that the engine distinguishes.
const (
	exitAllPassed   = 0
	exitTestsFailed = 1
)

// Validate runs the smoke test and, only if it passes, the full test
// suite. Test failures are reported in the Verdict; an error is returned
// only when a command could not be started at all.
func (e *Engine) Validate(ctx context.Context, interpreter string) (*Verdict, error) {
	rr := &report.RunResult{
		ID:        uuid.New().String(),
		Kind:      report.Validate,
		Threshold: e.Config.FailureThreshold,
		Stages: []report.Stage{
			{Name: report.StageSmoke, Status: report.StatusSkipped},
			{Name: report.StageSuite, Status: report.StatusSkipped},
		},
	}
	smoke, suite := &rr.Stages[0], &rr.Stages[1]

	ok, err := e.runSmoke(ctx, interpreter, smoke)
	if err != nil {
		return nil, err
	}
	if !ok {
		return finish(rr, false, SummarySmokeFailed, smoke.Output), nil
	}

	ok, summary, err := e.runSuite(ctx, interpreter, suite, rr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return finish(rr, false, summary, suite.Output), nil
	}

	return finish(rr, true, e.passSummary(ctx, suite.Output, rr), suite.Output), nil
}

// ValidateSuiteOnly runs the full suite without a smoke test or failure
// threshold: any non-zero exit fails the run, with no summary.
//
// Deprecated: use Validate, which gates the suite behind a smoke test and
// tolerates up to the configured number of failures.
func (e *Engine) ValidateSuiteOnly(ctx context.Context, interpreter string) (*Verdict, error) {
	argv := e.Config.SuiteArgv(interpreter)
	dir := e.Config.SuiteDir()
	rr := &report.RunResult{
		ID:   uuid.New().String(),
		Kind: report.SuiteOnly,
		Stages: []report.Stage{
			{Name: report.StageSuite, Command: argv, Dir: dir},
		},
	}
	st := &rr.Stages[0]

	ok, err := func() (bool, error) {
		span, log := logging.Group(ctx, e.logger(), "Running Validation Script")
		defer span.End()

		res, err := e.Runner.Run(ctx, argv, dir)
		if err != nil {
			return false, fmt.Errorf("running test suite: %w", err)
		}
		st.ExitCode = res.ExitCode
		st.Output = res.Combined()
		e.echoOutput(ctx, log, res)

		if res.ExitCode != exitAllPassed {
			st.Status = report.StatusFail
			log.ErrorContext(ctx, "validation failed: test suite returned a non-zero exit code", slog.Int("exit_code", res.ExitCode))
			return false, nil
		}
		st.Status = report.StatusPass
		log.InfoContext(ctx, "validation script completed successfully")
		return true, nil
	}()
	if err != nil {
		return nil, err
	}
	if !ok {
		return finish(rr, false, "", st.Output), nil
	}
	return finish(rr, true, e.passSummary(ctx, st.Output, rr), st.Output), nil
}

// runSmoke runs stage 1 from the workspace root. It reports whether the
// smoke test exited 0.
func (e *Engine) runSmoke(ctx context.Context, interpreter string, st *report.Stage) (bool, error) {
	span, log := logging.Group(ctx, e.logger(), "Smoke Test")
	defer span.End()

	st.Command = e.Config.SmokeArgv(interpreter)
	res, err := e.Runner.Run(ctx, st.Command, "")
	if err != nil {
		st.Status = report.StatusError
		return false, fmt.Errorf("running smoke test: %w", err)
	}
	st.ExitCode = res.ExitCode
	st.Output = res.Combined()
	e.echoOutput(ctx, log, res)

	if res.ExitCode != 0 {
		st.Status = report.StatusFail
		log.ErrorContext(ctx, "smoke test failed", slog.Int("exit_code", res.ExitCode))
		return false, nil
	}
	st.Status = report.StatusPass
	log.InfoContext(ctx, "smoke test passed")
	return true, nil
}

// runSuite runs stage 2 inside the suite directory and applies the
// failure threshold. On failure it returns the verdict summary.
func (e *Engine) runSuite(ctx context.Context, interpreter string, st *report.Stage, rr *report.RunResult) (bool, string, error) {
	span, log := logging.Group(ctx, e.logger(), "Full Test Suite")
	defer span.End()

	st.Command = e.Config.SuiteArgv(interpreter)
	st.Dir = e.Config.SuiteDir()
	res, err := e.Runner.Run(ctx, st.Command, st.Dir)
	if err != nil {
		st.Status = report.StatusError
		return false, "", fmt.Errorf("running test suite: %w", err)
	}
	st.ExitCode = res.ExitCode
	st.Output = res.Combined()
	e.echoOutput(ctx, log, res)

	switch res.ExitCode {
	case exitAllPassed:
		st.Status = report.StatusPass
		log.InfoContext(ctx, "all tests passed")
		return true, "", nil

	case exitTestsFailed:
		failed, err := e.parser().FailedCount(st.Output)
		if err != nil {
			st.Status = report.StatusError
			log.ErrorContext(ctx, "tests failed but the failure count could not be parsed", slog.Any("error", err))
			return false, SummaryCriticalFailure, nil
		}
		rr.Failed = &failed
		threshold := e.Config.FailureThreshold
		if failed > threshold {
			st.Status = report.StatusFail
			log.ErrorContext(ctx, "failures exceed threshold", slog.Int("failed", failed), slog.Int("threshold", threshold))
			return false, FailedSummary(failed), nil
		}
		st.Status = report.StatusSoftPass
		log.WarnContext(ctx, "soft pass: failures within threshold", slog.Int("failed", failed), slog.Int("threshold", threshold))
		return true, "", nil

	default:
		st.Status = report.StatusError
		log.ErrorContext(ctx, "test suite exited with an unexpected code", slog.Int("exit_code", res.ExitCode))
		return false, SummaryCriticalError, nil
	}
}

// passSummary builds the summary of a successful run. A missing pass
// count does not fail the run.
func (e *Engine) passSummary(ctx context.Context, output string, rr *report.RunResult) string {
	passed, err := e.parser().PassedCount(output)
	if err != nil {
		if !errors.Is(err, metrics.ErrNoCount) {
			e.logger().WarnContext(ctx, "pass count unreadable", slog.Any("error", err))
		}
		return SummaryNoMetrics
	}
	rr.Passed = &passed
	return MetricsSummary(passed)
}

func finish(rr *report.RunResult, success bool, summary, log string) *Verdict {
	rr.Success = success
	rr.Summary = summary
	return &Verdict{
		Success:   success,
		Summary:   summary,
		Log:       log,
		RunResult: rr,
	}
}
