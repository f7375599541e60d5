// Package popup is the action controller: it captures page text, runs the
// configured inference adapter and turns every failure into the text the user
// sees.
package popup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/hyperifyio/pagebrief/internal/inference"
	"github.com/hyperifyio/pagebrief/internal/pagetext"
)

// Action is a user-triggered operation.
type Action string

const (
	ActionSummarize Action = "summarize"
	ActionAsk       Action = "ask"
)

// ErrUnknownAction is returned by ParseAction and Run for anything other
// than summarize or ask.
var ErrUnknownAction = errors.New("unknown action")

// ParseAction maps user input to an Action.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionSummarize, "":
		return ActionSummarize, nil
	case ActionAsk:
		return ActionAsk, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Placeholders shown instead of a result.
const (
	PlaceholderModelNotLoaded     = "Model not loaded."
	PlaceholderTokenizerNotLoaded = "Tokenizer not loaded."
	PlaceholderSummaryError       = "Inference error during summarization."
	PlaceholderAnswerError        = "Inference error during Q&A."
	PlaceholderNoOutput           = "(No output)"
)

// Result is what one action renders.
type Result struct {
	Action Action
	Query  string
	Page   pagetext.PageText
	// Text is the summary, the answer or a placeholder. It is empty when the
	// backend produced no result.
	Text string
	// Err is the absorbed failure, if any. It is informational only.
	Err     error
	Elapsed time.Duration
}

// Placeholder reports whether Text stands in for a failed inference.
func (r Result) Placeholder() bool { return r.Err != nil }

// Controller runs actions against a page source and one adapter. A single
// Controller may serve many sources; see RunSource.
type Controller struct {
	Source  pagetext.Source
	Adapter inference.Adapter

	group singleflight.Group
}

// Summarize captures the page and summarizes it.
func (c *Controller) Summarize(ctx context.Context) Result {
	res, _ := c.Run(ctx, ActionSummarize, "")
	return res
}

// Ask captures the page and answers query about it.
func (c *Controller) Ask(ctx context.Context, query string) Result {
	res, _ := c.Run(ctx, ActionAsk, query)
	return res
}

// Run performs action against the controller's Source.
func (c *Controller) Run(ctx context.Context, action Action, query string) (Result, error) {
	return c.RunSource(ctx, c.Source, action, query)
}

// RunSource performs action against src. Concurrent calls with the same
// source location, action and query share a single capture and inference,
// which keeps running when the caller that started it goes away. The only
// returned error is ErrUnknownAction; every other failure is absorbed into
// Result.Text.
func (c *Controller) RunSource(ctx context.Context, src pagetext.Source, action Action, query string) (Result, error) {
	if action != ActionSummarize && action != ActionAsk {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	loc := location(src)
	if loc == "" {
		return c.run(ctx, src, action, query), nil
	}

	key := string(action) + "\x00" + query + "\x00" + loc
	ch := c.group.DoChan(key, func() (any, error) {
		return c.run(context.WithoutCancel(ctx), src, action, query), nil
	})
	select {
	case r := <-ch:
		if r.Shared {
			log.Debug().Str("action", string(action)).Str("source", loc).Msg("joined in-flight request")
		}
		return r.Val.(Result), nil
	case <-ctx.Done():
		err := ctx.Err()
		return Result{Action: action, Query: query, Err: err, Text: placeholderFor(action, err)}, nil
	}
}

// location is the sharing key for src. Sources that do not report a location
// are keyed by name.
func location(src pagetext.Source) string {
	if src == nil {
		return ""
	}
	if l, ok := src.(pagetext.Locator); ok {
		return l.Location()
	}
	return src.Name()
}

func (c *Controller) run(ctx context.Context, src pagetext.Source, action Action, query string) Result {
	start := time.Now()
	res := Result{Action: action, Query: query}

	if src == nil || c.Adapter == nil {
		res.Err = errors.New("controller not configured")
		log.Error().Err(res.Err).Send()
		res.Elapsed = time.Since(start)
		return res
	}

	page, err := src.Capture(ctx)
	if err != nil {
		log.Error().Err(err).Str("source", src.Name()).Msg("failed to capture page text")
		res.Err = err
		res.Elapsed = time.Since(start)
		return res
	}
	res.Page = page

	req := inference.Request{Task: inference.TaskSummarize, Text: page.Text}
	if action == ActionAsk {
		req.Task = inference.TaskAnswer
		req.Query = query
	}
	out, err := c.Adapter.Infer(ctx, req)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Err = err
		res.Text = placeholderFor(action, err)
		log.Error().Err(err).Str("backend", c.Adapter.Name()).Str("action", string(action)).Msg("inference failed")
		return res
	}
	res.Text = out
	log.Info().Str("backend", c.Adapter.Name()).Str("action", string(action)).Dur("elapsed", res.Elapsed).Int("page_chars", len(page.Text)).Msg("action done")
	return res
}

func placeholderFor(action Action, err error) string {
	switch {
	case errors.Is(err, inference.ErrModelNotLoaded):
		return PlaceholderModelNotLoaded
	case errors.Is(err, inference.ErrTokenizerNotLoaded):
		return PlaceholderTokenizerNotLoaded
	case errors.Is(err, inference.ErrNoResult):
		return ""
	case errors.Is(err, inference.ErrEmptyOutput):
		return PlaceholderNoOutput
	case action == ActionAsk:
		return PlaceholderAnswerError
	default:
		return PlaceholderSummaryError
	}
}
