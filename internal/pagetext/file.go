package pagetext

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperifyio/pagebrief/internal/extract"
)

// File reads a saved page or plain text from disk. Path "-" reads Stdin.
type File struct {
	Path  string
	Stdin io.Reader
}

func (f *File) Name() string { return "file" }

// Location is empty for stdin, which can be read only once.
func (f *File) Location() string {
	if f.Path == "" || f.Path == "-" {
		return ""
	}
	return "file " + f.Path
}

func (f *File) Capture(ctx context.Context) (PageText, error) {
	var (
		b   []byte
		err error
	)
	switch f.Path {
	case "":
		return PageText{}, fmt.Errorf("%w: no file", ErrNoPage)
	case "-":
		in := f.Stdin
		if in == nil {
			in = os.Stdin
		}
		b, err = io.ReadAll(in)
	default:
		b, err = os.ReadFile(f.Path)
	}
	if err != nil {
		return PageText{}, fmt.Errorf("read page: %w", err)
	}

	out := PageText{URL: f.Path, CapturedAt: time.Now()}
	if !looksLikeHTML(f.Path, b) {
		out.Text = extract.Normalize(string(b))
		return out, nil
	}
	// no declared charset, so the decoder prescans <meta charset>
	body, err := toUTF8(b, "text/html")
	if err != nil {
		return PageText{}, fmt.Errorf("decode page: %w", err)
	}
	doc := extract.VisibleText(body)
	out.Title, out.Text = doc.Title, doc.Text
	applyMeta(&out, body)
	return out, nil
}

func looksLikeHTML(path string, b []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	case ".txt", ".md":
		return false
	}
	return strings.HasPrefix(http.DetectContentType(b), "text/html")
}
