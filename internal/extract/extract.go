package extract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Document is the visible content of a page.
type Document struct {
	Title string
	Text  string
}

// VisibleText approximates what a browser returns for document.body.innerText:
// every rendered text node under <body>, with block elements breaking lines.
// Elements that are never rendered (script, style, template, hidden subtrees)
// contribute nothing.
func VisibleText(input []byte) Document {
	node, err := html.Parse(bytes.NewReader(input))
	if err != nil || node == nil {
		return Document{}
	}

	title := strings.TrimSpace(findTitle(node))
	body := findFirst(node, "body")
	if body == nil {
		body = node
	}

	var w textWriter
	collectText(&w, body, false)

	return Document{Title: title, Text: Normalize(w.String())}
}

// Normalize applies NFC and the whitespace rules used for captured page text.
// It is exported so text captured in a live page goes through the same rules.
func Normalize(s string) string {
	return normalizeWhitespace(norm.NFC.String(s))
}

func findTitle(n *html.Node) string {
	head := findFirst(n, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return t.FirstChild.Data
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findFirst(c, tag); res != nil {
			return res
		}
	}
	return nil
}

// textWriter collapses adjacent block boundaries the way innerText does: a
// run of breaks emits the largest requested count, never their sum.
type textWriter struct {
	b       strings.Builder
	pending int
}

func (w *textWriter) brk(n int) {
	if n > w.pending {
		w.pending = n
	}
}

func (w *textWriter) text(s string, pre bool) {
	if s == "" {
		return
	}
	if !pre && strings.TrimSpace(s) == "" {
		if w.pending == 0 && w.b.Len() > 0 {
			w.b.WriteByte(' ')
		}
		return
	}
	if w.pending > 0 && w.b.Len() > 0 {
		w.b.WriteString(strings.Repeat("\n", w.pending))
	}
	w.pending = 0
	w.b.WriteString(s)
}

func (w *textWriter) String() string { return w.b.String() }

func collectText(w *textWriter, n *html.Node, inPre bool) {
	var name string
	if n.Type == html.ElementNode {
		if !isRendered(n) {
			return
		}
		name = strings.ToLower(n.Data)
		switch name {
		case "pre", "textarea":
			inPre = true
		case "br":
			w.text("\n", true)
		case "td", "th":
			if n.PrevSibling != nil {
				w.text("\t", true)
			}
		}
		w.brk(breaksFor(name))
	}

	if n.Type == html.TextNode {
		data := n.Data
		if !inPre {
			data = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(data)
		}
		w.text(data, inPre)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(w, c, inPre)
	}

	if name != "" {
		w.brk(breaksFor(name))
	}
}

func breaksFor(name string) int {
	switch name {
	case "p", "h1", "h2", "h3", "h4", "h5", "h6":
		return 2
	}
	if isBlock(name) {
		return 1
	}
	return 0
}

// isRendered reports whether an element can produce visible text.
func isRendered(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "script", "style", "noscript", "template", "head", "iframe", "object", "svg", "canvas":
		return false
	}
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		val := strings.ToLower(strings.TrimSpace(attr.Val))
		switch key {
		case "hidden":
			return false
		case "aria-hidden":
			if val == "true" {
				return false
			}
		case "style":
			compact := strings.ReplaceAll(val, " ", "")
			if strings.Contains(compact, "display:none") || strings.Contains(compact, "visibility:hidden") {
				return false
			}
		case "type":
			if strings.EqualFold(n.Data, "input") && val == "hidden" {
				return false
			}
		}
	}
	return true
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"tr": true, "ul": true, "caption": true, "details": true, "summary": true,
}

func isBlock(name string) bool {
	return blockElements[name]
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			// keep at most one consecutive blank line
			if len(out) == 0 || out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, collapseSpaces(trimmed))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\u00a0' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
