// Package report provides structured persistence and retrieval of
// validation run results, so that a verdict and the raw log of each stage
// can be inspected after the run.
package report

import (
	"fmt"
	"strings"
)

// Kind identifies the type of a run.
type Kind string

const (
	// Validate is the two-stage run (smoke test, then full suite).
	Validate Kind = "validate"
	// SuiteOnly is the legacy single-stage run.
	SuiteOnly Kind = "suite-only"
)

// Stage names.
const (
	StageSmoke = "smoke"
	StageSuite = "suite"
)

// Stage statuses.
const (
	StatusPass     = "pass"
	StatusSoftPass = "soft-pass"
	StatusFail     = "fail"
	StatusError    = "error"
	StatusSkipped  = "skipped"
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult holds the structured outcome of a validation run.
type RunResult struct {
	ID        string  `json:"id"`
	Kind      Kind    `json:"kind"`
	Success   bool    `json:"success"`
	Summary   string  `json:"summary,omitempty"`
	Threshold int     `json:"threshold"`
	Passed    *int    `json:"passed,omitempty"` // nil when the count could not be parsed
	Failed    *int    `json:"failed,omitempty"`
	Stages    []Stage `json:"stages"`
}

// Stage records one subprocess invocation of a run.
type Stage struct {
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Command  []string `json:"command,omitempty"`
	Dir      string   `json:"dir,omitempty"`
	ExitCode int      `json:"exit_code"`
	Output   string   `json:"output,omitempty"` // stdout followed by stderr
}

// Expect returns an error if the run's Kind does not match want.
func (r *RunResult) Expect(want Kind) error {
	if r.Kind != want {
		return fmt.Errorf("run %s is a %s run, not a %s run", r.ID, r.Kind, want)
	}
	return nil
}

// Stage returns the named stage, or nil if the run never reached it.
func (r *RunResult) Stage(name string) *Stage {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i]
		}
	}
	return nil
}

// LastStage returns the stage that decided the verdict.
func (r *RunResult) LastStage() *Stage {
	for i := len(r.Stages) - 1; i >= 0; i-- {
		if r.Stages[i].Status != StatusSkipped {
			return &r.Stages[i]
		}
	}
	return nil
}

// Describe renders a short per-stage overview of the run.
func (r *RunResult) Describe() string {
	var b strings.Builder
	status := "FAIL"
	if r.Success {
		status = "PASS"
	}
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Run: %s (%s)\n", r.ID, r.Kind)
	fmt.Fprintf(&b, "Threshold: %d\n", r.Threshold)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Stages:")
	for _, s := range r.Stages {
		if s.Status == StatusSkipped {
			fmt.Fprintf(&b, "  %s: %s\n", s.Name, s.Status)
			continue
		}
		fmt.Fprintf(&b, "  %s: %s (exit %d)\n", s.Name, s.Status, s.ExitCode)
	}
	if r.Summary != "" {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, r.Summary)
	}
	return b.String()
}
