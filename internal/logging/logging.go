// Package logging builds the structured loggers used across verdict and
// provides grouped log spans.
package logging

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Group markers emitted at the start and end of a span. They match the
// folding syntax understood by common CI log viewers.
const (
	GroupStart = "::group::"
	GroupEnd   = "::endgroup::"
)

// Options selects the handler and level for New.
type Options struct {
	JSON    bool
	Verbose bool
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	ho := &slog.HandlerOptions{Level: level}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, ho))
	}
	return slog.New(slog.NewTextHandler(w, ho))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Span is an open log group. End must be called exactly once; later calls
// are no-ops.
type Span struct {
	log   *slog.Logger
	title string
	start time.Time
	ended bool
}

// Group opens a named span on l and returns it together with a logger that
// tags every record with the span title.
func Group(ctx context.Context, l *slog.Logger, title string) (*Span, *slog.Logger) {
	l.InfoContext(ctx, GroupStart+title)
	s := &Span{log: l, title: title, start: time.Now()}
	return s, l.With(slog.String("group", title))
}

// End closes the span.
func (s *Span) End() {
	if s.ended {
		return
	}
	s.ended = true
	s.log.Info(GroupEnd, slog.String("group", s.title), slog.Duration("elapsed", time.Since(s.start)))
}
