// Package output formats human-facing CLI output. Progress bars are drawn
// only when the destination is a terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Writer prints status lines and progress.
type Writer struct {
	out         io.Writer
	interactive bool

	// last 25% step printed in non-interactive mode
	lastPct int
}

// New returns a Writer for out. Progress redraws in place when out is a
// terminal.
func New(out io.Writer) *Writer {
	return &Writer{out: out, interactive: IsTerminal(out)}
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Interactive reports whether progress is drawn in place.
func (w *Writer) Interactive() bool { return w.interactive }

// Status prints msg after icon, or indented when icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon == "" {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
}

// Statusf formats a status line.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

func (w *Writer) Successf(format string, args ...any) { w.Statusf("✓", format, args...) }
func (w *Writer) Warningf(format string, args ...any) { w.Statusf("!", format, args...) }
func (w *Writer) Errorf(format string, args ...any)   { w.Statusf("✗", format, args...) }

// KeyValue prints an aligned "key: value" line.
func (w *Writer) KeyValue(key string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %-16s %v\n", key+":", value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Progress reports current of total. On a terminal the bar is redrawn in
// place; otherwise a line is printed at each 25% step.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}
	pct := current * 100 / total

	if !w.interactive {
		step := pct / 25 * 25
		if step > w.lastPct {
			_, _ = fmt.Fprintf(w.out, "%s: %d/%d (%d%%)\n", msg, current, total, pct)
		}
		w.lastPct = step
		if current >= total {
			w.lastPct = 0
		}
		return
	}

	_, _ = fmt.Fprintf(w.out, "\r[%s] %3d%% %s", bar(current, total, 30), pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

func bar(current, total, width int) string {
	filled := current * width / total
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
