package popup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFitHeight_NeverExceedsCap(t *testing.T) {
	for scroll := 0; scroll <= 5000; scroll += 37 {
		h := FitHeight(scroll, 100, 600)
		if h > 600 {
			t.Fatalf("scroll %d: height %d exceeds cap", scroll, h)
		}
		if scroll+100 <= 600 && h != scroll+100 {
			t.Fatalf("scroll %d: expected %d, got %d", scroll, scroll+100, h)
		}
	}
}

func TestMeasure_CapsLongText(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 500)
	lines, h := HTMLLayout.Measure(text)
	if h != HTMLLayout.MaxHeight {
		t.Fatalf("expected capped height %d, got %d", HTMLLayout.MaxHeight, h)
	}
	if len(lines) < 100 {
		t.Fatalf("expected many lines, got %d", len(lines))
	}

	_, h = HTMLLayout.Measure("short")
	if h != 120 {
		t.Fatalf("expected 20+100, got %d", h)
	}
	_, h = HTMLLayout.Measure("")
	if h != 100 {
		t.Fatalf("expected padding only, got %d", h)
	}
}

func TestWrap(t *testing.T) {
	got := Wrap("the quick brown fox\njumps", 10)
	want := []string{"the quick", "brown fox", "jumps"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q", got)
	}
	for _, l := range Wrap(strings.Repeat("ä", 25), 10) {
		if utf8.RuneCountInString(l) > 10 {
			t.Fatalf("line too long: %q", l)
		}
	}
	if Wrap("", 10) != nil {
		t.Fatal("expected no lines")
	}
}

func TestTerminalLines_TruncatesWithEllipsis(t *testing.T) {
	l := Layout{Width: 20, LineHeight: 1, Padding: 2, MaxHeight: 6}
	lines := TerminalLines(l, strings.Repeat("word ", 100))
	if len(lines) != 4 {
		t.Fatalf("expected 4 visible rows, got %d", len(lines))
	}
	if lines[len(lines)-1] != ellipsisRow {
		t.Fatalf("expected ellipsis row, got %q", lines[len(lines)-1])
	}
	if got := TerminalLines(l, "fits"); len(got) != 1 || got[0] != "fits" {
		t.Fatalf("unexpected short render: %q", got)
	}
}

func TestTerminalRenderer_AskHeader(t *testing.T) {
	out := TerminalRenderer{}.String(Result{Action: ActionAsk, Query: "why?", Text: "because"})
	if out != "Answer\nQ: why?\nbecause\n" {
		t.Fatalf("unexpected render: %q", out)
	}
}

func TestRenderHTML_SanitizesAndSizes(t *testing.T) {
	res := &Result{Action: ActionSummarize, Text: `<script>alert(1)</script>Tom & Jerry <b>bold</b>`}
	v := NewHTMLView("https://example.com", "", res)
	var sb strings.Builder
	if err := RenderHTML(&sb, v); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := sb.String()
	if strings.Contains(out, "<script>alert") || strings.Contains(out, "<b>bold") {
		t.Fatalf("markup leaked into page: %s", out)
	}
	if !strings.Contains(out, "Tom &amp; Jerry bold") {
		t.Fatalf("expected escaped text once, got %s", out)
	}
	if !strings.Contains(out, "height: 120px") {
		t.Fatalf("expected container height, got %s", out)
	}
}

func TestWritePDF(t *testing.T) {
	out := filepath.Join(t.TempDir(), "summary.pdf")
	res := Result{Action: ActionSummarize, Text: "Résumé line one\n\nline two"}
	res.Page.URL = "https://example.com/a"
	res.Page.Title = "Example"
	if err := WritePDF(res, out); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), "%PDF-") {
		t.Fatalf("not a pdf: %q", b[:8])
	}
}
