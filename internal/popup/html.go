package popup

import (
	"html"
	"html/template"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

// HTMLView is the data behind the popup page.
type HTMLView struct {
	URL      string
	Question string
	Result   *Result
	// Lines is the sanitized, wrapped result text.
	Lines []string
	// Height is the capped container height in pixels.
	Height int
}

// NewHTMLView sanitizes the result text and sizes its container.
func NewHTMLView(url, question string, res *Result) HTMLView {
	v := HTMLView{URL: url, Question: question, Result: res}
	if res == nil {
		return v
	}
	// the template escapes on output, so entities from sanitizing are undone
	clean := strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(res.Text)))
	v.Lines, v.Height = HTMLLayout.Measure(clean)
	return v
}

var popupTemplate = template.Must(template.New("popup").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>pagebrief</title>
<style>
body { font-family: system-ui, sans-serif; width: 420px; margin: 12px; }
#result { overflow-y: auto; line-height: 20px; white-space: pre-wrap; }
.placeholder { color: #a15c00; font-style: italic; }
</style>
</head>
<body>
<form method="post" action="/popup">
  <input type="url" name="url" placeholder="https://..." value="{{.URL}}" required>
  <button type="submit" name="action" value="summarize" id="summarize">Summarize</button>
  <input type="text" name="question" placeholder="Ask about this page" value="{{.Question}}">
  <button type="submit" name="action" value="ask" id="ask">Ask</button>
</form>
{{with .Result}}
<div id="result" style="height: {{$.Height}}px"{{if .Placeholder}} class="placeholder"{{end}}>{{range $.Lines}}{{.}}
{{end}}</div>
{{end}}
</body>
</html>
`))

// RenderHTML writes the popup page.
func RenderHTML(w io.Writer, v HTMLView) error {
	return popupTemplate.Execute(w, v)
}
