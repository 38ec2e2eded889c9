// Package metrics extracts pass and failure counts from the text output of
// an external test runner. The orchestrator depends only on Parser, so the
// output format can change without touching the validation pipeline.
package metrics

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/deixis/verdict/internal/config"
)

// ErrNoCount is returned when the output carries no recognizable count.
var ErrNoCount = errors.New("count not found in output")

// Parser reads test counts from combined stdout+stderr text.
type Parser interface {
	FailedCount(output string) (int, error)
	PassedCount(output string) (int, error)
}

// New returns the parser for a suite output format.
func New(format string) (Parser, error) {
	switch format {
	case "", config.FormatPytest:
		return Pytest{}, nil
	case config.FormatGoTestJSON:
		return GoTestJSON{}, nil
	default:
		return nil, fmt.Errorf("unknown suite format %q", format)
	}
}

var (
	failedRe = regexp.MustCompile(`(\d+)\s+failed`)
	passedRe = regexp.MustCompile(`(\d+)\s+passed`)
)

// Pytest reads the pytest summary line, e.g. "3 failed, 120 passed in 4.2s".
// Only the first match counts.
type Pytest struct{}

// FailedCount returns N from the first "<N> failed" in output.
func (Pytest) FailedCount(output string) (int, error) {
	return firstCount(failedRe, output)
}

// PassedCount returns N from the first "<N> passed" in output.
func (Pytest) PassedCount(output string) (int, error) {
	return firstCount(passedRe, output)
}

func firstCount(re *regexp.Regexp, output string) (int, error) {
	m := re.FindStringSubmatch(output)
	if m == nil {
		return 0, ErrNoCount
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", m[1], err)
	}
	return n, nil
}
