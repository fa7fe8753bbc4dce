// Package util holds terminal output helpers for the CLI.
package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

// Terminal writes short status lines, colored when attached to a TTY.
type Terminal struct {
	w     io.Writer
	color bool
	quiet bool
}

// NewTerminal returns a Terminal on w. Color is enabled only when w is a
// terminal and NO_COLOR is unset.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, color: supportsColor(w)}
}

func supportsColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetQuiet suppresses success and info lines; warnings and errors still show.
func (t *Terminal) SetQuiet(quiet bool) {
	t.quiet = quiet
}

func (t *Terminal) paint(color, s string) string {
	if !t.color {
		return s
	}
	return color + s + ColorReset
}

// ShowSuccess displays a success message
func (t *Terminal) ShowSuccess(message string) {
	if t.quiet {
		return
	}
	fmt.Fprintf(t.w, "  %s %s\n", t.paint(ColorGreen, "✓"), message)
}

// ShowInfo displays an info message
func (t *Terminal) ShowInfo(message string) {
	if t.quiet {
		return
	}
	fmt.Fprintf(t.w, "  %s %s\n", t.paint(ColorCyan, "•"), message)
}

// ShowWarning displays a warning message
func (t *Terminal) ShowWarning(message string) {
	fmt.Fprintf(t.w, "  %s %s\n", t.paint(ColorYellow, "⚠"), message)
}

// ShowError displays an error message
func (t *Terminal) ShowError(message string) {
	fmt.Fprintf(t.w, "  %s %s\n", t.paint(ColorRed, "✗"), message)
}

// Count is one labelled number in a summary table.
type Count struct {
	Label string
	N     int
	Good  bool // rendered green when non-zero, otherwise yellow
}

// ShowSummary prints a title and one aligned line per count.
func (t *Terminal) ShowSummary(title string, counts []Count) {
	if t.quiet {
		return
	}
	width := 0
	for _, c := range counts {
		if len(c.Label) > width {
			width = len(c.Label)
		}
	}
	fmt.Fprintf(t.w, "%s\n", t.paint(ColorBold, title))
	for _, c := range counts {
		n := fmt.Sprintf("%d", c.N)
		switch {
		case c.N == 0:
			n = t.paint(ColorDim, n)
		case c.Good:
			n = t.paint(ColorGreen, n)
		default:
			n = t.paint(ColorYellow, n)
		}
		fmt.Fprintf(t.w, "  %s%s  %s\n", c.Label, strings.Repeat(" ", width-len(c.Label)), n)
	}
}
