package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/pagebrief/internal/budget"
	"github.com/hyperifyio/pagebrief/internal/llm"
)

const (
	defaultMaxOutputTokens = 512

	summarizeSystemPrompt = `Summarize the web page text you are given.
Rules:
- 3 to 5 short sentences.
- Keep critical context (names, dates, numbers).
- Ignore navigation, cookie notices and other page chrome.
- Write in the same language as the page.`

	answerSystemPrompt = `Answer the user's question using only the web page text you are given.
If the page does not contain the answer, say so in one sentence.
Answer in the same language as the question.`
)

// OpenAI summarizes through an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	Client llm.Client
	Model  string
	// MaxOutputTokens is reserved from the context window. Zero means 512.
	MaxOutputTokens int
	// LanguageHint, when set, asks for output in this language.
	LanguageHint string
}

func (o *OpenAI) Name() string { return "openai" }

// Infer sends one chat completion and returns the trimmed answer.
func (o *OpenAI) Infer(ctx context.Context, req Request) (string, error) {
	if o.Client == nil || strings.TrimSpace(o.Model) == "" {
		return "", errors.New("openai backend not configured")
	}
	system := summarizeSystemPrompt
	if req.Task == TaskAnswer {
		system = answerSystemPrompt
	}
	if hint := strings.TrimSpace(o.LanguageHint); hint != "" {
		system += "\nWrite in language: " + hint
	}
	reserved := o.MaxOutputTokens
	if reserved <= 0 {
		reserved = defaultMaxOutputTokens
	}

	fixed := system + req.Query
	text, cut := budget.Truncate(req.Text, budget.InputTokens(o.Model, reserved, fixed))
	if cut {
		log.Debug().Int("chars", len(req.Text)).Int("kept", len(text)).Str("model", o.Model).Msg("page text truncated to fit context")
	}

	resp, err := o.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: buildUserMessage(req.Task, req.Query, text)},
		},
		Temperature: 0.1,
		MaxTokens:   reserved,
		N:           1,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrNoResult)
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

func buildUserMessage(task Task, query, text string) string {
	var sb strings.Builder
	if task == TaskAnswer {
		sb.WriteString("Question:\n")
		sb.WriteString(strings.TrimSpace(query))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Page text:\n")
	sb.WriteString(text)
	return sb.String()
}
