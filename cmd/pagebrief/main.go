package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/pagebrief/internal/app"
	"github.com/hyperifyio/pagebrief/internal/inference"
	"github.com/hyperifyio/pagebrief/internal/inference/local"
)

const usage = `usage: pagebrief <command> [flags]

commands:
  summarize   capture the page and summarize it
  ask         capture the page and answer -q about it
  serve       run the summarization API and popup page
  version     print build information

run "pagebrief <command> -h" for flags.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses args and executes one command. Exit codes: 0 when a result was
// rendered (placeholders included), 1 on runtime failure, 2 on bad
// configuration.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	command := args[0]
	if command == "version" {
		fmt.Fprintf(stdout, "pagebrief %s (%s, %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		return 0
	}

	cfg, logFile, err := parseConfig(command, args[1:], stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	closer := app.SetupLogging(cfg.Verbose, logFile)
	defer closer.Close()
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 2
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("init app")
		return 2
	}
	defer a.Close()
	a.SetOutput(stdout)

	if err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("run failed")
		if errors.Is(err, app.ErrNoPageSource) {
			return 2
		}
		return 1
	}
	return 0
}

// parseConfig layers flags over environment over config file over defaults.
func parseConfig(command string, args []string, stderr io.Writer) (app.Config, string, error) {
	cfg := app.Config{Command: command}
	fs := flag.NewFlagSet("pagebrief "+command, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath string
		envFiles   string
	)
	fs.StringVar(&configPath, "config", os.Getenv("PAGEBRIEF_CONFIG"), "Path to a YAML or JSON config file")
	fs.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files; later files override earlier ones")

	fs.StringVar(&cfg.Question, "q", "", "Question to answer (ask)")
	fs.StringVar(&cfg.Source, "source", "", "Page source: browser, http or file (inferred when empty)")
	fs.StringVar(&cfg.PageURL, "url", "", "Page URL to open (browser) or download (http)")
	fs.StringVar(&cfg.CDPURL, "cdp.url", "", "Chrome DevTools endpoint, e.g. http://127.0.0.1:9222")
	fs.DurationVar(&cfg.CaptureTimeout, "cdp.timeout", app.DefaultCaptureTimeout, "Timeout for a browser capture")
	fs.StringVar(&cfg.FilePath, "file", "", "Saved HTML or text file to read; - reads stdin")

	fs.StringVar(&cfg.Backend, "backend", app.BackendRemote, "Inference backend: remote, local or openai")
	fs.StringVar(&cfg.RemoteURL, "remote.url", inference.DefaultRemoteURL, "Summarization endpoint for the remote backend")
	fs.DurationVar(&cfg.RemoteTimeout, "remote.timeout", app.DefaultRemoteTimeout, "Timeout for one remote request")
	fs.IntVar(&cfg.RemoteRetries, "remote.retries", 0, "Retries for failed remote requests")

	fs.StringVar(&cfg.ModelDir, "model.dir", "", "Directory with encoder_model.onnx, decoder_model.onnx and tokenizer.json")
	fs.StringVar(&cfg.ORTLibrary, "model.ortLib", "", "Path to the onnxruntime shared library")
	fs.StringVar(&cfg.DecodeMode, "local.decode", string(local.DecodeSingle), "Decoding: single (one decoder pass) or greedy")
	fs.IntVar(&cfg.MaxInputTokens, "local.maxInputTokens", local.DefaultMaxInputTokens, "Truncate encoder input to this many tokens")
	fs.IntVar(&cfg.MaxLength, "local.maxLength", local.DefaultMaxLength, "Maximum generated tokens (greedy)")
	fs.IntVar(&cfg.MinLength, "local.minLength", 0, "Minimum generated tokens before EOS is allowed (greedy)")
	fs.BoolVar(&cfg.TaskPrefix, "local.taskPrefix", true, `Prefix summarization prompts with "summarize: "`)

	fs.StringVar(&cfg.LLMBaseURL, "llm.base", "", "OpenAI-compatible base URL")
	fs.StringVar(&cfg.LLMModel, "llm.model", "", "Model name")
	fs.StringVar(&cfg.LLMAPIKey, "llm.key", "", "API key for OpenAI-compatible server")
	fs.StringVar(&cfg.LanguageHint, "lang", "", "Optional output language hint, e.g. 'en' or 'fi'")

	fs.StringVar(&cfg.CacheDir, "cache.dir", "", "Cache directory for pages and results; empty disables caching")
	fs.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge; 0 disables")
	fs.BoolVar(&cfg.CacheClear, "cache.clear", false, "Clear cache directory before run")
	fs.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.IntVar(&cfg.CacheMaxEntries, "cache.maxEntries", 0, "Keep at most this many entries per cache kind; 0 disables")

	fs.StringVar(&cfg.OutputPDFPath, "output.pdf", "", "Also write the result to this PDF file")
	fs.IntVar(&cfg.Width, "width", app.DefaultWidth, "Wrap width for terminal output")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output")

	fs.StringVar(&cfg.ListenAddr, "listen", app.DefaultListenAddr, "Listen address (serve)")
	fs.Float64Var(&cfg.RateLimit, "rate", 0, "Requests per second across all clients (serve); 0 disables")
	fs.IntVar(&cfg.RateBurst, "rate.burst", 0, "Rate limiter burst (serve)")
	fs.DurationVar(&cfg.SummaryCacheTTL, "serve.cacheTTL", 10*time.Minute, "How long summaries are reused (serve); negative disables")
	logFile := fs.String("log.file", "", "Also write JSON logs to this rotating file")

	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")

	if err := fs.Parse(args); err != nil {
		return cfg, "", err
	}
	if fs.NArg() > 0 && cfg.Question == "" && command == app.CommandAsk {
		cfg.Question = strings.Join(fs.Args(), " ")
	}

	if err := app.LoadEnvFiles(strings.Split(envFiles, ",")...); err != nil {
		return cfg, *logFile, fmt.Errorf("load env: %w", err)
	}
	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return cfg, *logFile, fmt.Errorf("config file: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
		if fc.Serve.LogFile != "" && *logFile == "" {
			*logFile = fc.Serve.LogFile
		}
	}
	if err := app.ApplyEnvOverrides(&cfg); err != nil {
		return cfg, *logFile, err
	}
	// Parsing again restores explicitly passed flags over env and file.
	if err := fs.Parse(args); err != nil {
		return cfg, *logFile, err
	}
	if fs.NArg() > 0 && cfg.Question == "" && command == app.CommandAsk {
		cfg.Question = strings.Join(fs.Args(), " ")
	}
	return cfg, *logFile, app.ValidateConfig(cfg)
}
