package app

import (
	"time"
)

// Commands.
const (
	CommandSummarize = "summarize"
	CommandAsk       = "ask"
	CommandServe     = "serve"
)

// Page sources.
const (
	SourceBrowser = "browser"
	SourceHTTP    = "http"
	SourceFile    = "file"
)

// Backends.
const (
	BackendRemote = "remote"
	BackendLocal  = "local"
	BackendOpenAI = "openai"
)

// Config holds runtime configuration for the application.
type Config struct {
	Command  string
	Question string

	// Page source
	Source   string
	PageURL  string
	CDPURL   string
	FilePath string
	// CaptureTimeout bounds a browser capture.
	CaptureTimeout time.Duration

	// Backend selection
	Backend string

	// Remote backend
	RemoteURL     string
	RemoteTimeout time.Duration
	RemoteRetries int

	// Local backend
	ModelDir       string
	ORTLibrary     string
	DecodeMode     string
	MaxInputTokens int
	MaxLength      int
	MinLength      int
	TaskPrefix     bool

	// OpenAI-compatible backend
	LLMBaseURL   string
	LLMModel     string
	LLMAPIKey    string
	LanguageHint string

	// Caching; an empty CacheDir disables the on-disk caches
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	CacheMaxEntries  int

	// Rendering
	OutputPDFPath string
	NoColor       bool
	Width         int

	// Server
	ListenAddr      string
	RateLimit       float64
	RateBurst       int
	SummaryCacheTTL time.Duration
	LogFile         string

	UserAgent string
	Verbose   bool
}

// Defaults shared by flags and file config.
const (
	DefaultUserAgent      = "pagebrief/1.0 (+https://github.com/hyperifyio/pagebrief)"
	DefaultRemoteTimeout  = 60 * time.Second
	DefaultCaptureTimeout = 30 * time.Second
	DefaultListenAddr     = ":2850"
	DefaultWidth          = 80
)
