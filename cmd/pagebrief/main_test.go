package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperifyio/pagebrief/internal/app"
)

func TestRun_SummarizeFromStdinFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"summary":"brief"}`))
	}))
	defer srv.Close()

	page := filepath.Join(t.TempDir(), "p.html")
	if err := os.WriteFile(page, []byte("<html><body><p>hello</p></body></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"summarize", "-env", "", "-remote.url", srv.URL, "-file", page, "-no-color"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "brief") {
		t.Fatalf("unexpected stdout %q", stdout.String())
	}
}

func TestRun_ExitCodes(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(context.Background(), nil, &out, &errOut); code != 2 {
		t.Fatalf("no args: exit %d", code)
	}
	if code := run(context.Background(), []string{"ask", "-env", ""}, &out, &errOut); code != 2 {
		t.Fatalf("ask without question: exit %d", code)
	}
	if code := run(context.Background(), []string{"summarize", "-env", "", "-backend", "gpu"}, &out, &errOut); code != 2 {
		t.Fatalf("bad backend: exit %d", code)
	}
	if code := run(context.Background(), []string{"summarize", "-env", ""}, &out, &errOut); code != 2 {
		t.Fatalf("no page source: exit %d", code)
	}
	out.Reset()
	if code := run(context.Background(), []string{"version"}, &out, &errOut); code != 0 || !strings.HasPrefix(out.String(), "pagebrief ") {
		t.Fatalf("version: exit %d, %q", code, out.String())
	}
}

func TestParseConfig_Layering(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pagebrief.yaml")
	if err := os.WriteFile(cfgPath, []byte("backend: openai\nllm:\n  model: file-model\n  base: http://file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLM_BASE_URL", "http://env")
	t.Setenv("LLM_MODEL", "")
	t.Setenv("PAGEBRIEF_BACKEND", "")

	var stderr bytes.Buffer
	cfg, _, err := parseConfig(app.CommandAsk, []string{"-env", "", "-config", cfgPath, "-llm.model", "flag-model", "what", "is", "this?"}, &stderr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Backend != app.BackendOpenAI {
		t.Fatalf("file should set backend, got %q", cfg.Backend)
	}
	if cfg.LLMBaseURL != "http://env" {
		t.Fatalf("env should beat file, got %q", cfg.LLMBaseURL)
	}
	if cfg.LLMModel != "flag-model" {
		t.Fatalf("flag should beat file, got %q", cfg.LLMModel)
	}
	if cfg.Question != "what is this?" {
		t.Fatalf("positional question, got %q", cfg.Question)
	}
}

func TestParseConfig_FileRemoteURL(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "pagebrief.yaml")
	if err := os.WriteFile(cfgPath, []byte("remote:\n  url: http://summarizer.internal:9000/summarize\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REMOTE_URL", "")
	t.Setenv("PAGEBRIEF_BACKEND", "")

	var stderr bytes.Buffer
	cfg, _, err := parseConfig(app.CommandSummarize, []string{"-env", "", "-config", cfgPath}, &stderr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.RemoteURL != "http://summarizer.internal:9000/summarize" {
		t.Fatalf("file should beat the default, got %q", cfg.RemoteURL)
	}

	cfg, _, err = parseConfig(app.CommandSummarize, []string{"-env", "", "-config", cfgPath, "-remote.url", "http://flag/summarize"}, &stderr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.RemoteURL != "http://flag/summarize" {
		t.Fatalf("flag should beat the file, got %q", cfg.RemoteURL)
	}
}
