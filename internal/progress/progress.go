// Package progress reports xmatch pipeline stage progress to stderr,
// gated on whether stderr is an interactive terminal.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Reporter prints stage progress lines. It is a no-op when its
// underlying writer isn't a terminal, so piping nway's stderr to a log
// file never fills it with carriage-return-driven progress spam.
type Reporter struct {
	w      io.Writer
	active bool
}

// NewStderrReporter builds a Reporter over os.Stderr, active only when
// os.Stderr is a TTY.
func NewStderrReporter() *Reporter {
	return &Reporter{
		w:      os.Stderr,
		active: isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}
}

// NewReporter builds a Reporter over an arbitrary writer, with active
// forced rather than detected — used by tests and by callers that want
// progress lines written somewhere other than a terminal.
func NewReporter(w io.Writer, active bool) *Reporter {
	return &Reporter{w: w, active: active}
}

// Stage reports progress within one named pipeline stage as "done of
// total" rows, overwriting the previous line with a carriage return.
func (r *Reporter) Stage(name string, done, total int) {
	if !r.active {
		return
	}
	pct := 0.0
	if total > 0 {
		pct = 100 * float64(done) / float64(total)
	}
	fmt.Fprintf(r.w, "\r%-16s %8d / %-8d (%5.1f%%)", name, done, total, pct)
}

// Done terminates the current stage's progress line with a trailing
// newline so subsequent output doesn't overwrite it.
func (r *Reporter) Done(name string) {
	if !r.active {
		return
	}
	fmt.Fprintf(r.w, "\r%-16s done%s\n", name, "                              ")
}

// Active reports whether this Reporter will actually write anything.
func (r *Reporter) Active() bool {
	return r.active
}
