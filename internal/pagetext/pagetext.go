// Package pagetext captures the visible text of a page at the moment of a
// user action.
package pagetext

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// PageText is the text captured for one request. It is not reused across
// requests.
type PageText struct {
	URL         string
	Title       string
	Description string
	Text        string
	CapturedAt  time.Time
}

// Source returns the current page's visible text.
type Source interface {
	Name() string
	Capture(ctx context.Context) (PageText, error)
}

// Locator is implemented by sources that read one addressable page. Captures
// of the same location taken at the same moment are interchangeable. An empty
// location means the source cannot be shared.
type Locator interface {
	Location() string
}

// ErrNoPage is returned when a source has nothing to read from.
var ErrNoPage = errors.New("no page to capture")

// Static always returns the same text. The server wraps text posted to
// /summarize in it.
type Static struct {
	Page PageText
}

func (s Static) Name() string { return "static" }

func (s Static) Capture(ctx context.Context) (PageText, error) {
	p := s.Page
	if p.CapturedAt.IsZero() {
		p.CapturedAt = time.Now()
	}
	return p, nil
}

// Location identifies the page by its URL and a digest of its text.
func (s Static) Location() string {
	sum := sha256.Sum256([]byte(s.Page.Text))
	return "static " + s.Page.URL + " " + hex.EncodeToString(sum[:])
}
