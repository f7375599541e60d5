package extract

import (
	"strings"
	"testing"
)

func TestVisibleText_IncludesWholeBody(t *testing.T) {
	html := `<!doctype html>
    <html>
      <head><title>Test Page</title><style>p { color: red }</style></head>
      <body>
        <nav>Home | About</nav>
        <main>
          <h1>Main Heading</h1>
          <p>This is the main content paragraph.</p>
        </main>
        <footer>Footer text</footer>
        <script>var hidden = "script text";</script>
      </body>
    </html>`

	doc := VisibleText([]byte(html))
	if doc.Title != "Test Page" {
		t.Fatalf("expected title 'Test Page', got %q", doc.Title)
	}
	for _, want := range []string{"Home | About", "Main Heading", "This is the main content paragraph.", "Footer text"} {
		if !strings.Contains(doc.Text, want) {
			t.Fatalf("expected %q in text, got %q", want, doc.Text)
		}
	}
	if strings.Contains(doc.Text, "script text") || strings.Contains(doc.Text, "color: red") {
		t.Fatalf("did not expect script or style content, got %q", doc.Text)
	}
}

func TestVisibleText_SkipsHiddenSubtrees(t *testing.T) {
	html := `<html><body>
      <div hidden>attr hidden</div>
      <div aria-hidden="true">aria hidden</div>
      <div style="display: none">inline none</div>
      <span style="visibility:hidden">invisible</span>
      <input type="hidden" value="secret">
      <template><p>template body</p></template>
      <p>shown</p>
    </body></html>`

	doc := VisibleText([]byte(html))
	if doc.Text != "shown" {
		t.Fatalf("expected only visible text, got %q", doc.Text)
	}
}

func TestVisibleText_BlockElementsBreakLines(t *testing.T) {
	html := `<html><body><div>first</div><div>second</div><span>a</span> <span>b</span>
      <ul><li>one</li><li>two</li></ul></body></html>`

	doc := VisibleText([]byte(html))
	lines := strings.Split(doc.Text, "\n")
	want := []string{"first", "second", "a b", "one", "two"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), doc.Text)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestVisibleText_PreservesPreformattedLines(t *testing.T) {
	html := "<html><body><pre>line one\nline two</pre></body></html>"

	doc := VisibleText([]byte(html))
	if !strings.Contains(doc.Text, "line one\nline two") {
		t.Fatalf("expected pre content to keep its newline, got %q", doc.Text)
	}
}

func TestVisibleText_EmptyDocument(t *testing.T) {
	doc := VisibleText(nil)
	if doc.Text != "" || doc.Title != "" {
		t.Fatalf("expected empty document, got %+v", doc)
	}
}

func TestNormalize_CollapsesWhitespaceAndComposes(t *testing.T) {
	// "e" followed by a combining acute accent composes to U+00E9.
	got := Normalize("  café   au   lait \n\n\n\n next ")
	if got != "café au lait\n\nnext" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}
