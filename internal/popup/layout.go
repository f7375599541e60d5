package popup

import (
	"strings"
	"unicode/utf8"
)

// Layout sizes the result container. Heights share one unit, pixels for HTML
// and rows for the terminal.
type Layout struct {
	// Width is the wrap width in characters.
	Width      int
	LineHeight int
	// Padding is added to the content height before capping.
	Padding   int
	MaxHeight int
}

// HTMLLayout matches the browser popup.
var HTMLLayout = Layout{Width: 60, LineHeight: 20, Padding: 100, MaxHeight: 600}

// TerminalLayout measures in rows.
var TerminalLayout = Layout{Width: 80, LineHeight: 1, Padding: 2, MaxHeight: 40}

// FitHeight returns min(scrollHeight+padding, maxHeight).
func FitHeight(scrollHeight, padding, maxHeight int) int {
	return min(scrollHeight+padding, maxHeight)
}

// Measure wraps text and returns the lines with the capped container height.
func (l Layout) Measure(text string) (lines []string, height int) {
	lines = Wrap(text, l.Width)
	return lines, FitHeight(len(lines)*max(l.LineHeight, 1), l.Padding, l.MaxHeight)
}

// VisibleLines is how many lines fit inside height.
func (l Layout) VisibleLines(height int) int {
	return max((height-l.Padding)/max(l.LineHeight, 1), 0)
}

// Wrap breaks text into lines of at most width runes, splitting on spaces and
// hard-breaking words longer than width. Existing newlines are kept.
func Wrap(text string, width int) []string {
	if text == "" {
		return nil
	}
	if width <= 0 {
		return strings.Split(text, "\n")
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		var line strings.Builder
		n := 0
		for _, w := range words {
			for utf8.RuneCountInString(w) > width {
				if n > 0 {
					out = append(out, line.String())
					line.Reset()
					n = 0
				}
				head, rest := splitRunes(w, width)
				out = append(out, head)
				w = rest
			}
			wl := utf8.RuneCountInString(w)
			if n > 0 && n+1+wl > width {
				out = append(out, line.String())
				line.Reset()
				n = 0
			}
			if n > 0 {
				line.WriteByte(' ')
				n++
			}
			line.WriteString(w)
			n += wl
		}
		if n > 0 {
			out = append(out, line.String())
		}
	}
	return out
}

func splitRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}
