package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// DefaultRemoteURL is the summarization endpoint served by `pagebrief serve`.
const DefaultRemoteURL = "http://localhost:2850/summarize"

// RemoteConfig configures the HTTP summarization client.
type RemoteConfig struct {
	URL       string
	Timeout   time.Duration
	Retries   int
	UserAgent string
}

// Remote posts page text to a summarization endpoint.
type Remote struct {
	client *resty.Client
	url    string
}

type summarizeRequest struct {
	Text string `json:"text"`
}

type summarizeResponse struct {
	Summary json.RawMessage `json:"summary"`
	Error   string          `json:"error"`
}

// NewRemote builds a client for cfg. Retries default to zero.
func NewRemote(cfg RemoteConfig) *Remote {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		url = DefaultRemoteURL
	}
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.Retries)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Remote{client: client, url: url}
}

func (r *Remote) Name() string { return "remote" }

// Infer sends {"text": prompt} and returns the summary field. Transport
// failures, non-2xx statuses and undecodable bodies are logged and reported
// as ErrNoResult.
func (r *Remote) Infer(ctx context.Context, req Request) (string, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(summarizeRequest{Text: req.Prompt()}).
		Post(r.url)
	if err != nil {
		log.Error().Err(err).Str("url", r.url).Msg("failed to fetch summary")
		return "", fmt.Errorf("%w: post: %v", ErrNoResult, err)
	}
	if !resp.IsSuccess() {
		log.Error().Int("status", resp.StatusCode()).Str("url", r.url).Msg("summarization endpoint returned non-OK status")
		return "", fmt.Errorf("%w: status %d", ErrNoResult, resp.StatusCode())
	}

	var out summarizeResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		log.Error().Err(err).Str("raw", preview(string(resp.Body()), 200)).Msg("failed to parse summarization response")
		return "", fmt.Errorf("%w: decode: %v", ErrNoResult, err)
	}
	summary := decodeSummary(out.Summary)
	if strings.TrimSpace(summary) == "" {
		log.Error().Str("error", out.Error).Str("raw", preview(string(resp.Body()), 200)).Msg("summarization response has no summary")
		return "", ErrNoResult
	}
	return summary, nil
}

// decodeSummary accepts either a plain string or the list form
// [{"summary_text": "..."}] returned by pipeline-style servers.
func decodeSummary(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		SummaryText string `json:"summary_text"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if t := strings.TrimSpace(it.SummaryText); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
