package popup

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// TerminalRenderer prints a Result as a boxed-in popup on a terminal.
type TerminalRenderer struct {
	Layout Layout
	// NoColor disables ANSI colors regardless of the terminal.
	NoColor bool
}

const ellipsisRow = "…"

// Render writes the header and the wrapped text, cut to the capped height.
func (r TerminalRenderer) Render(w io.Writer, res Result) error {
	layout := r.Layout
	if layout.Width == 0 {
		layout = TerminalLayout
	}
	heading := color.New(color.FgCyan, color.Bold)
	faint := color.New(color.Faint)
	body := color.New(color.Reset)
	if res.Placeholder() {
		body = color.New(color.FgYellow)
	}
	for _, c := range []*color.Color{heading, faint, body} {
		if r.NoColor {
			c.DisableColor()
		}
	}

	title := "Summary"
	if res.Action == ActionAsk {
		title = "Answer"
	}
	if _, err := heading.Fprintln(w, title); err != nil {
		return err
	}
	if res.Action == ActionAsk && strings.TrimSpace(res.Query) != "" {
		if _, err := faint.Fprintf(w, "Q: %s\n", strings.TrimSpace(res.Query)); err != nil {
			return err
		}
	}
	if res.Page.Title != "" || res.Page.URL != "" {
		if _, err := faint.Fprintln(w, strings.TrimSpace(res.Page.Title+" "+res.Page.URL)); err != nil {
			return err
		}
	}

	for _, line := range TerminalLines(layout, res.Text) {
		if _, err := body.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// TerminalLines wraps text and trims it to the capped height, replacing the
// last visible row with an ellipsis when content overflows.
func TerminalLines(layout Layout, text string) []string {
	lines, height := layout.Measure(text)
	visible := layout.VisibleLines(height)
	if len(lines) <= visible {
		return lines
	}
	if visible <= 0 {
		return nil
	}
	out := append([]string(nil), lines[:visible-1]...)
	return append(out, ellipsisRow)
}

// String renders res without colors.
func (r TerminalRenderer) String(res Result) string {
	var sb strings.Builder
	r.NoColor = true
	if err := r.Render(&sb, res); err != nil {
		return fmt.Sprintf("render: %v", err)
	}
	return sb.String()
}
