// internal/output/terminal.go
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/julianshen/conceptmap/internal/synth"
)

const defaultWidth = 100

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#EEEEEE"}).
			Bold(true).
			Padding(0, 1)
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of f, or a default when unknown.
func TerminalWidth(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// Header renders a one-line status header for a report.
func Header(r *synth.Report) string {
	status := okStyle.Render("done")
	if len(r.Diagnostics) > 0 {
		status = warnStyle.Render(fmt.Sprintf("done with %d soft failures", len(r.Diagnostics)))
	}
	return headerStyle.Render("conceptmap") + " " + status
}

// RenderMarkdown renders md for a terminal of the given width.
func RenderMarkdown(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating glamour renderer: %w", err)
	}
	return r.Render(md)
}

// Write formats report with the named formatter and writes it to w. When
// styled is set and the format is Markdown, the output is rendered for a
// terminal of the given width.
func Write(w io.Writer, report *synth.Report, format string, styled bool, width int) error {
	f, err := NewFormatter(format)
	if err != nil {
		return err
	}
	data, err := f.Format(report)
	if err != nil {
		return fmt.Errorf("formatting report: %w", err)
	}

	if styled && (format == "" || format == FormatMarkdown) {
		rendered, err := RenderMarkdown(string(data), width)
		if err == nil {
			_, err = fmt.Fprintf(w, "%s\n%s", Header(report), rendered)
			return err
		}
	}
	_, err = w.Write(data)
	return err
}
