// Package server exposes the summarizer over HTTP: a JSON summarization API
// and a server-rendered popup page.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/pagebrief/internal/inference"
	"github.com/hyperifyio/pagebrief/internal/pagetext"
	"github.com/hyperifyio/pagebrief/internal/popup"
)

const (
	DefaultAddr     = ":2850"
	DefaultCacheTTL = 10 * time.Minute

	msgRunning      = "Summarization API is running."
	msgNoText       = "No text provided"
	msgSummaryError = "Failed to generate summary"
)

// Config tunes the HTTP server.
type Config struct {
	Addr string
	// RateLimit is requests per second across all clients. Zero disables it.
	RateLimit float64
	Burst     int
	// CacheTTL bounds how long summaries are reused. Negative disables caching.
	CacheTTL time.Duration
	// MaxBodyBytes caps request bodies. Zero means 4 MiB.
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

// SourceFunc builds the page source used by the popup page for a URL.
type SourceFunc func(url string) pagetext.Source

// Server owns the gin engine and its dependencies.
type Server struct {
	cfg     Config
	adapter inference.Adapter
	pages   SourceFunc
	cache   *gocache.Cache
	ctrl    *popup.Controller
	metrics *Metrics
	engine  *gin.Engine
}

// New wires routes for adapter. pages may be nil, in which case the popup
// page reports that it cannot read pages.
func New(cfg Config, adapter inference.Adapter, pages SourceFunc) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 4 << 20
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{cfg: cfg, adapter: adapter, pages: pages, ctrl: &popup.Controller{Adapter: adapter}, metrics: newMetrics()}
	if cfg.CacheTTL > 0 {
		s.cache = gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(int(cfg.RateLimit), 1)
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(s.metrics), globalRateLimit(limiter, s.metrics))

	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, msgRunning) })
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": adapter.Name()}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/", allowAllOrigins())
	api.POST("/summarize", s.handleSummarize)
	api.OPTIONS("/summarize", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.GET("/popup", s.handlePopup)
	r.POST("/popup", s.handlePopup)

	s.engine = r
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Metrics exposes the server's collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Str("backend", s.adapter.Name()).Msg("summarization server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type summarizeBody struct {
	Text string `json:"text"`
}

func (s *Server) handleSummarize(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
	var body summarizeBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoText})
		return
	}

	key := textKey(body.Text)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			s.metrics.CacheHits.Inc()
			c.JSON(http.StatusOK, gin.H{"summary": v.(string)})
			return
		}
		s.metrics.CacheMisses.Inc()
	}

	src := pagetext.Static{Page: pagetext.PageText{Text: body.Text}}
	res := s.runAction(c.Request.Context(), src, popup.ActionSummarize, "")
	if res.Err != nil {
		log.Error().Err(res.Err).Str("request_id", c.GetString(requestIDHeader)).Msg("summarization error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgSummaryError})
		return
	}
	summary := res.Text
	if s.cache != nil {
		s.cache.SetDefault(key, summary)
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

type popupForm struct {
	URL      string `form:"url"`
	Action   string `form:"action"`
	Question string `form:"question"`
}

func (s *Server) handlePopup(c *gin.Context) {
	var form popupForm
	_ = c.ShouldBind(&form)
	form.URL = strings.TrimSpace(form.URL)

	var res *popup.Result
	if c.Request.Method == http.MethodPost && form.URL != "" {
		action, err := popup.ParseAction(form.Action)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		r := s.runPopup(c.Request.Context(), action, form.URL, form.Question)
		res = &r
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := popup.RenderHTML(c.Writer, popup.NewHTMLView(form.URL, form.Question, res)); err != nil {
		log.Error().Err(err).Msg("render popup")
	}
}

func (s *Server) runPopup(ctx context.Context, action popup.Action, url, question string) popup.Result {
	if s.pages == nil {
		return popup.Result{Action: action, Query: question, Err: pagetext.ErrNoPage}
	}
	return s.runAction(ctx, s.pages(url), action, question)
}

// runAction goes through the shared controller so identical concurrent
// requests for one page run once.
func (s *Server) runAction(ctx context.Context, src pagetext.Source, action popup.Action, question string) popup.Result {
	start := time.Now()
	res, _ := s.ctrl.RunSource(ctx, src, action, question)
	outcome := "ok"
	if res.Err != nil {
		outcome = "error"
	}
	s.metrics.InferenceDuration.WithLabelValues(s.adapter.Name(), outcome).Observe(time.Since(start).Seconds())
	return res
}

func textKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
