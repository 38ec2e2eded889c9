package metrics

import (
	"encoding/json"
	"strings"
)

// GoTestJSON reads the event stream produced by `go test -json`.
type GoTestJSON struct{}

// FailedCount returns the number of failed tests. A failing run with no
// failed test events (a build failure, for instance) has no usable count.
func (GoTestJSON) FailedCount(output string) (int, error) {
	s := parseTestEvents(output)
	if s.Failed == 0 {
		return 0, ErrNoCount
	}
	return s.Failed, nil
}

// PassedCount returns the number of passed tests.
func (GoTestJSON) PassedCount(output string) (int, error) {
	s := parseTestEvents(output)
	if s.Total == 0 {
		return 0, ErrNoCount
	}
	return s.Passed, nil
}

// testSummary holds counts of test-level events.
type testSummary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// test2jsonEvent represents a single event from `go test -json`.
type test2jsonEvent struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Output  string  `json:"Output"`
	Elapsed float64 `json:"Elapsed"`
}

// parseTestEvents counts pass, fail and skip events of individual tests.
// Lines that are not JSON (stderr noise) are skipped.
func parseTestEvents(data string) testSummary {
	var s testSummary
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var ev test2jsonEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.Test == "" {
			continue
		}
		switch ev.Action {
		case "pass":
			s.Total++
			s.Passed++
		case "fail":
			s.Total++
			s.Failed++
		case "skip":
			s.Total++
			s.Skipped++
		}
	}
	return s
}
