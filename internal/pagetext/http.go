package pagetext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/hyperifyio/pagebrief/internal/extract"
	"github.com/hyperifyio/pagebrief/internal/fetch"
)

// HTTP downloads a page and extracts its visible text without a browser.
type HTTP struct {
	Client    *fetch.Client
	URL       string
	Extractor extract.Extractor
}

func (h *HTTP) Name() string { return "http" }

func (h *HTTP) Location() string { return "http " + strings.TrimSpace(h.URL) }

func (h *HTTP) Capture(ctx context.Context) (PageText, error) {
	if strings.TrimSpace(h.URL) == "" {
		return PageText{}, fmt.Errorf("%w: no url", ErrNoPage)
	}
	page, err := h.Client.Get(ctx, h.URL)
	if err != nil {
		return PageText{}, err
	}
	body, err := toUTF8(page.Body, page.ContentType)
	if err != nil {
		return PageText{}, fmt.Errorf("decode %s: %w", h.URL, err)
	}
	out := PageText{URL: page.URL, CapturedAt: time.Now()}
	if !fetch.IsHTMLContentType(page.ContentType) {
		out.Text = extract.Normalize(string(body))
		return out, nil
	}
	ex := h.Extractor
	if ex == nil {
		ex = extract.InnerTextExtractor{}
	}
	doc := ex.Extract(body)
	out.Title, out.Text = doc.Title, doc.Text
	applyMeta(&out, body)
	return out, nil
}

// toUTF8 decodes body using the declared or sniffed charset.
func toUTF8(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// applyMeta fills title and description from Open Graph or standard meta tags.
func applyMeta(p *PageText, body []byte) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return
	}
	if v := strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", "")); v != "" && p.Title == "" {
		p.Title = v
	}
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if v := strings.TrimSpace(doc.Find(sel).First().AttrOr("content", "")); v != "" {
			p.Description = v
			break
		}
	}
}
