package pagetext

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/pagebrief/internal/extract"
)

// innerTextScript is evaluated inside the page.
const innerTextScript = `document.body ? document.body.innerText : ""`

// Browser reads text from a running Chrome over the DevTools protocol. With
// URL empty it reads the first open page tab; otherwise it opens URL in a new
// tab first.
type Browser struct {
	// CDPURL is the DevTools websocket or http endpoint, e.g.
	// ws://127.0.0.1:9222/devtools/browser/<id> or http://127.0.0.1:9222.
	CDPURL  string
	URL     string
	Timeout time.Duration
}

func (b *Browser) Name() string { return "browser" }

// Location names the endpoint and, when set, the page opened on it.
func (b *Browser) Location() string { return "browser " + b.CDPURL + " " + b.URL }

func (b *Browser) Capture(ctx context.Context) (PageText, error) {
	if strings.TrimSpace(b.CDPURL) == "" {
		return PageText{}, fmt.Errorf("%w: no devtools endpoint", ErrNoPage)
	}
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, b.CDPURL)
	defer cancelAlloc()

	tabCtx, cancelTab, err := b.tabContext(allocCtx)
	if err != nil {
		return PageText{}, err
	}
	defer cancelTab()

	var text, title, location string
	actions := []chromedp.Action{}
	if b.URL != "" {
		actions = append(actions, chromedp.Navigate(b.URL), chromedp.WaitReady("body", chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.Evaluate(innerTextScript, &text),
		chromedp.Title(&title),
		chromedp.Location(&location),
	)
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return PageText{}, fmt.Errorf("capture page text: %w", err)
	}
	log.Debug().Str("url", location).Int("chars", len(text)).Msg("captured page text")
	return PageText{
		URL:        location,
		Title:      strings.TrimSpace(title),
		Text:       extract.Normalize(text),
		CapturedAt: time.Now(),
	}, nil
}

// tabContext attaches to the active page or opens a new tab when URL is set.
func (b *Browser) tabContext(allocCtx context.Context) (context.Context, context.CancelFunc, error) {
	if b.URL != "" {
		ctx, cancel := chromedp.NewContext(allocCtx)
		return ctx, cancel, nil
	}
	listCtx, cancelList := chromedp.NewContext(allocCtx)
	targets, err := chromedp.Targets(listCtx)
	if err != nil {
		cancelList()
		return nil, nil, fmt.Errorf("list targets: %w", err)
	}
	t := activePage(targets)
	if t == nil {
		cancelList()
		return nil, nil, fmt.Errorf("%w: no open page tab", ErrNoPage)
	}
	ctx, cancel := chromedp.NewContext(listCtx, chromedp.WithTargetID(t.TargetID))
	return ctx, func() { cancel(); cancelList() }, nil
}

// activePage picks the first regular page target. Browser-internal pages are
// skipped since they have no readable body.
func activePage(targets []*target.Info) *target.Info {
	for _, t := range targets {
		if t == nil || t.Type != "page" {
			continue
		}
		if strings.HasPrefix(t.URL, "chrome://") || strings.HasPrefix(t.URL, "devtools://") || strings.HasPrefix(t.URL, "chrome-extension://") {
			continue
		}
		return t
	}
	return nil
}
