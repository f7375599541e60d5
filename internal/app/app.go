package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/pagebrief/internal/cache"
	"github.com/hyperifyio/pagebrief/internal/extract"
	"github.com/hyperifyio/pagebrief/internal/fetch"
	"github.com/hyperifyio/pagebrief/internal/inference"
	"github.com/hyperifyio/pagebrief/internal/inference/local"
	"github.com/hyperifyio/pagebrief/internal/llm"
	"github.com/hyperifyio/pagebrief/internal/pagetext"
	"github.com/hyperifyio/pagebrief/internal/popup"
	"github.com/hyperifyio/pagebrief/internal/server"
)

// ErrNoPageSource is returned when no browser endpoint, URL or file was given.
var ErrNoPageSource = errors.New("no page source configured: set -cdp.url, -url or -file")

type App struct {
	cfg        Config
	out        io.Writer
	httpClient *http.Client
	httpCache  *cache.HTTPCache
	adapter    inference.Adapter
	// model is loaded once for the local backend and shared by every request.
	model *local.Model
}

// New builds the backend once. A local model that fails to load is logged
// and kept partial so actions render the matching placeholder.
func New(ctx context.Context, cfg Config) (*App, error) {
	a := &App{cfg: cfg, out: os.Stdout, httpClient: newSharedHTTPClient(cfg.RemoteTimeout)}

	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			_ = cache.ClearDir(cfg.CacheDir)
		}
		if cfg.CacheMaxAge > 0 {
			// ignore errors to avoid failing startup
			_, _ = cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge)
		}
		if cfg.CacheMaxEntries > 0 {
			_, _ = cache.EnforceLimits(cfg.CacheDir, cfg.CacheMaxEntries)
		}
		a.httpCache = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}

	adapter, err := a.buildAdapter(ctx)
	if err != nil {
		return nil, err
	}
	a.adapter = adapter
	return a, nil
}

// SetOutput redirects rendered results, mainly for tests.
func (a *App) SetOutput(w io.Writer) { a.out = w }

// Adapter returns the active backend.
func (a *App) Adapter() inference.Adapter { return a.adapter }

func (a *App) Close() {
	if err := a.model.Close(); err != nil {
		log.Warn().Err(err).Msg("closing model sessions")
	}
}

// Run executes the configured command.
func (a *App) Run(ctx context.Context) error {
	switch a.cfg.Command {
	case CommandServe:
		return a.serve(ctx)
	case CommandAsk:
		return a.runAction(ctx, popup.ActionAsk)
	default:
		return a.runAction(ctx, popup.ActionSummarize)
	}
}

func (a *App) runAction(ctx context.Context, action popup.Action) error {
	src, err := a.pageSource()
	if err != nil {
		return err
	}
	ctrl := &popup.Controller{Source: src, Adapter: a.adapter}
	res, err := ctrl.Run(ctx, action, a.cfg.Question)
	if err != nil {
		return err
	}

	width := a.cfg.Width
	if width <= 0 {
		width = DefaultWidth
	}
	layout := popup.TerminalLayout
	layout.Width = width
	if err := (popup.TerminalRenderer{Layout: layout, NoColor: a.cfg.NoColor}).Render(a.out, res); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if a.cfg.OutputPDFPath != "" {
		if err := popup.WritePDF(res, a.cfg.OutputPDFPath); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		log.Info().Str("out", a.cfg.OutputPDFPath).Msg("wrote pdf")
	}
	return nil
}

func (a *App) serve(ctx context.Context) error {
	srv := server.New(server.Config{
		Addr:      a.cfg.ListenAddr,
		RateLimit: a.cfg.RateLimit,
		Burst:     a.cfg.RateBurst,
		CacheTTL:  a.cfg.SummaryCacheTTL,
	}, a.adapter, func(url string) pagetext.Source {
		return &pagetext.HTTP{Client: a.fetchClient(), URL: url, Extractor: extract.InnerTextExtractor{}}
	})
	return srv.Run(ctx)
}

// pageSource picks the configured source, inferring it when unset: a
// DevTools endpoint means browser, a URL means http, a file means file.
func (a *App) pageSource() (pagetext.Source, error) {
	kind := a.cfg.Source
	if kind == "" {
		switch {
		case a.cfg.CDPURL != "":
			kind = SourceBrowser
		case a.cfg.PageURL != "":
			kind = SourceHTTP
		case a.cfg.FilePath != "":
			kind = SourceFile
		default:
			return nil, ErrNoPageSource
		}
	}
	switch kind {
	case SourceBrowser:
		if a.cfg.CDPURL == "" {
			return nil, fmt.Errorf("%w: browser source needs -cdp.url", ErrNoPageSource)
		}
		timeout := a.cfg.CaptureTimeout
		if timeout <= 0 {
			timeout = DefaultCaptureTimeout
		}
		return &pagetext.Browser{CDPURL: a.cfg.CDPURL, URL: a.cfg.PageURL, Timeout: timeout}, nil
	case SourceHTTP:
		if a.cfg.PageURL == "" {
			return nil, fmt.Errorf("%w: http source needs -url", ErrNoPageSource)
		}
		return &pagetext.HTTP{Client: a.fetchClient(), URL: a.cfg.PageURL, Extractor: extract.InnerTextExtractor{}}, nil
	case SourceFile:
		if a.cfg.FilePath == "" {
			return nil, fmt.Errorf("%w: file source needs -file", ErrNoPageSource)
		}
		return &pagetext.File{Path: a.cfg.FilePath}, nil
	}
	return nil, fmt.Errorf("%w: unknown source %q", ErrNoPageSource, kind)
}

func (a *App) fetchClient() *fetch.Client {
	ua := a.cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &fetch.Client{
		HTTPClient:        a.httpClient,
		UserAgent:         ua,
		MaxAttempts:       2,
		PerRequestTimeout: 15 * time.Second,
		Cache:             a.httpCache,
		RedirectMaxHops:   5,
		MaxConcurrent:     8,
		BypassCache:       a.cfg.CacheClear,
	}
}

func (a *App) buildAdapter(ctx context.Context) (inference.Adapter, error) {
	var adapter inference.Adapter
	switch a.cfg.Backend {
	case BackendRemote, "":
		timeout := a.cfg.RemoteTimeout
		if timeout <= 0 {
			timeout = DefaultRemoteTimeout
		}
		adapter = inference.NewRemote(inference.RemoteConfig{
			URL:       a.cfg.RemoteURL,
			Timeout:   timeout,
			Retries:   a.cfg.RemoteRetries,
			UserAgent: DefaultUserAgent,
		})
	case BackendLocal:
		m, err := local.Load(local.LoadConfig{Dir: a.cfg.ModelDir, LibraryPath: a.cfg.ORTLibrary})
		if err != nil {
			log.Error().Err(err).Str("dir", a.cfg.ModelDir).Msg("failed to load local model")
		}
		a.model = m
		mode, err := local.ParseDecodeMode(a.cfg.DecodeMode)
		if err != nil {
			return nil, err
		}
		adapter = &local.Adapter{Model: m, Options: local.Options{
			Mode:           mode,
			MaxInputTokens: a.cfg.MaxInputTokens,
			MaxLength:      a.cfg.MaxLength,
			MinLength:      a.cfg.MinLength,
			TaskPrefix:     a.cfg.TaskPrefix,
		}}
	case BackendOpenAI:
		provider := llm.NewOpenAIProvider(a.cfg.LLMAPIKey, a.cfg.LLMBaseURL, a.httpClient)
		preflight(ctx, provider)
		adapter = &inference.OpenAI{Client: provider, Model: a.cfg.LLMModel, LanguageHint: a.cfg.LanguageHint}
	default:
		return nil, fmt.Errorf("unknown backend %q", a.cfg.Backend)
	}

	if a.cfg.CacheDir != "" {
		adapter = &inference.Cached{
			Inner: adapter,
			Cache: &cache.ResultCache{Dir: a.cfg.CacheDir, StrictPerms: a.cfg.CacheStrictPerms},
			Model: resultCacheModel(a.cfg),
		}
	}
	log.Debug().Str("backend", adapter.Name()).Msg("backend ready")
	return adapter, nil
}

// resultCacheModel names everything besides the prompt that changes a
// backend's output, so a result is never reused across settings.
func resultCacheModel(cfg Config) string {
	switch cfg.Backend {
	case BackendLocal:
		mode := cfg.DecodeMode
		if mode == "" {
			mode = string(local.DecodeSingle)
		}
		return fmt.Sprintf("%s decode=%s maxIn=%d max=%d min=%d prefix=%t",
			cfg.ModelDir, mode, cfg.MaxInputTokens, cfg.MaxLength, cfg.MinLength, cfg.TaskPrefix)
	case BackendOpenAI:
		return fmt.Sprintf("%s %s lang=%s", cfg.LLMBaseURL, cfg.LLMModel, cfg.LanguageHint)
	default:
		return cfg.RemoteURL
	}
}

// preflight lists models as a best-effort connectivity check.
func preflight(ctx context.Context, lister llm.ModelLister) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := lister.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
		return
	}
	if len(models.Models) > 0 {
		log.Info().Int("count", len(models.Models)).Msg("LLM models available")
	} else {
		log.Warn().Msg("LLM returned zero models")
	}
}
