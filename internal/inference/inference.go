// Package inference turns captured page text into a summary or an answer.
//
// Exactly one Adapter is active per process. Adapters return plain errors;
// the popup controller decides what the user sees for each of them.
package inference

import (
	"context"
	"errors"
	"strings"
)

// Task selects what the adapter produces.
type Task int

const (
	TaskSummarize Task = iota
	TaskAnswer
)

func (t Task) String() string {
	switch t {
	case TaskSummarize:
		return "summarize"
	case TaskAnswer:
		return "ask"
	default:
		return "unknown"
	}
}

// Request is one inference call over a captured page.
type Request struct {
	Task Task
	// Text is the page text captured for this request.
	Text string
	// Query is the user question; only used by TaskAnswer.
	Query string
}

// Prompt is the text an adapter feeds its model or endpoint.
func (r Request) Prompt() string {
	if r.Task == TaskAnswer {
		return QAPrompt(r.Query, r.Text)
	}
	return r.Text
}

// QAPrompt combines a question with page text in the text-to-text format the
// seq2seq models were tuned on.
func QAPrompt(query, text string) string {
	return "question: " + strings.TrimSpace(query) + "  context: " + text
}

// Adapter produces an InferenceResult for a request.
type Adapter interface {
	// Name identifies the backend in logs, metrics and cache keys.
	Name() string
	Infer(ctx context.Context, req Request) (string, error)
}

var (
	// ErrNoResult means the backend answered but produced nothing usable.
	ErrNoResult = errors.New("no result")
	// ErrModelNotLoaded means the encoder or decoder session is missing.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrTokenizerNotLoaded means the tokenizer artifact is missing.
	ErrTokenizerNotLoaded = errors.New("tokenizer not loaded")
	// ErrEmptyOutput means the model ran but decoded to an empty string.
	ErrEmptyOutput = errors.New("empty output")
)
