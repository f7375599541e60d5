package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/pagebrief/internal/inference"
	"github.com/hyperifyio/pagebrief/internal/inference/local"
)

// FileConfig represents the single-file configuration schema.
// Nested sections map naturally to the dotted flag names.
type FileConfig struct {
	Source string `yaml:"source" json:"source"`
	URL    string `yaml:"url" json:"url"`
	CDP    struct {
		URL     string        `yaml:"url" json:"url"`
		Timeout time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"cdp" json:"cdp"`

	Backend string `yaml:"backend" json:"backend"`

	Remote struct {
		URL     string        `yaml:"url" json:"url"`
		Timeout time.Duration `yaml:"timeout" json:"timeout"`
		Retries int           `yaml:"retries" json:"retries"`
	} `yaml:"remote" json:"remote"`

	Model struct {
		Dir string `yaml:"dir" json:"dir"`
		ORT string `yaml:"ortLib" json:"ortLib"`
	} `yaml:"model" json:"model"`

	Local struct {
		Decode         string `yaml:"decode" json:"decode"`
		MaxInputTokens int    `yaml:"maxInputTokens" json:"maxInputTokens"`
		MaxLength      int    `yaml:"maxLength" json:"maxLength"`
		MinLength      int    `yaml:"minLength" json:"minLength"`
		TaskPrefix     *bool  `yaml:"taskPrefix" json:"taskPrefix"`
	} `yaml:"local" json:"local"`

	LLM struct {
		BaseURL string `yaml:"base" json:"base"`
		Model   string `yaml:"model" json:"model"`
		APIKey  string `yaml:"key" json:"key"`
	} `yaml:"llm" json:"llm"`

	Language string `yaml:"language" json:"language"`
	Verbose  bool   `yaml:"verbose" json:"verbose"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
		MaxEntries  int           `yaml:"maxEntries" json:"maxEntries"`
	} `yaml:"cache" json:"cache"`

	Output struct {
		PDF     string `yaml:"pdf" json:"pdf"`
		Width   int    `yaml:"width" json:"width"`
		NoColor bool   `yaml:"noColor" json:"noColor"`
	} `yaml:"output" json:"output"`

	Serve struct {
		Addr      string        `yaml:"addr" json:"addr"`
		RateLimit float64       `yaml:"rateLimit" json:"rateLimit"`
		Burst     int           `yaml:"burst" json:"burst"`
		CacheTTL  time.Duration `yaml:"cacheTTL" json:"cacheTTL"`
		LogFile   string        `yaml:"logFile" json:"logFile"`
	} `yaml:"serve" json:"serve"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are still unset or at their flag default.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	str := func(dst *string, v, def string) {
		if (*dst == "" || *dst == def) && v != "" {
			*dst = v
		}
	}
	num := func(dst *int, v, def int) {
		if (*dst == 0 || *dst == def) && v > 0 {
			*dst = v
		}
	}
	dur := func(dst *time.Duration, v, def time.Duration) {
		if (*dst == 0 || *dst == def) && v > 0 {
			*dst = v
		}
	}

	str(&cfg.Source, fc.Source, "")
	str(&cfg.PageURL, fc.URL, "")
	str(&cfg.CDPURL, fc.CDP.URL, "")
	dur(&cfg.CaptureTimeout, fc.CDP.Timeout, DefaultCaptureTimeout)
	str(&cfg.Backend, fc.Backend, BackendRemote)

	str(&cfg.RemoteURL, fc.Remote.URL, inference.DefaultRemoteURL)
	dur(&cfg.RemoteTimeout, fc.Remote.Timeout, DefaultRemoteTimeout)
	num(&cfg.RemoteRetries, fc.Remote.Retries, 0)

	str(&cfg.ModelDir, fc.Model.Dir, "")
	str(&cfg.ORTLibrary, fc.Model.ORT, "")
	str(&cfg.DecodeMode, fc.Local.Decode, string(local.DecodeSingle))
	num(&cfg.MaxInputTokens, fc.Local.MaxInputTokens, local.DefaultMaxInputTokens)
	num(&cfg.MaxLength, fc.Local.MaxLength, local.DefaultMaxLength)
	num(&cfg.MinLength, fc.Local.MinLength, 0)
	if fc.Local.TaskPrefix != nil {
		cfg.TaskPrefix = *fc.Local.TaskPrefix
	}

	str(&cfg.LLMBaseURL, fc.LLM.BaseURL, "")
	str(&cfg.LLMModel, fc.LLM.Model, "")
	str(&cfg.LLMAPIKey, fc.LLM.APIKey, "")
	str(&cfg.LanguageHint, fc.Language, "")
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}

	str(&cfg.CacheDir, fc.Cache.Dir, "")
	dur(&cfg.CacheMaxAge, fc.Cache.MaxAge, 0)
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	num(&cfg.CacheMaxEntries, fc.Cache.MaxEntries, 0)

	str(&cfg.OutputPDFPath, fc.Output.PDF, "")
	num(&cfg.Width, fc.Output.Width, DefaultWidth)
	if !cfg.NoColor && fc.Output.NoColor {
		cfg.NoColor = true
	}

	str(&cfg.ListenAddr, fc.Serve.Addr, DefaultListenAddr)
	if cfg.RateLimit == 0 && fc.Serve.RateLimit > 0 {
		cfg.RateLimit = fc.Serve.RateLimit
	}
	num(&cfg.RateBurst, fc.Serve.Burst, 0)
	dur(&cfg.SummaryCacheTTL, fc.Serve.CacheTTL, 10*time.Minute)
	str(&cfg.LogFile, fc.Serve.LogFile, "")
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
	switch cfg.Command {
	case CommandSummarize, CommandServe:
	case CommandAsk:
		if strings.TrimSpace(cfg.Question) == "" {
			return errors.New("config: ask requires a question (-q)")
		}
	default:
		return fmt.Errorf("config: unknown command %q", cfg.Command)
	}

	switch cfg.Backend {
	case BackendRemote:
		if cfg.Command == CommandServe {
			return errors.New("config: serve needs a local or openai backend; remote would call itself")
		}
	case BackendLocal:
		if strings.TrimSpace(cfg.ModelDir) == "" {
			return errors.New("config: local backend requires model.dir (or set MODEL_DIR)")
		}
	case BackendOpenAI:
		if strings.TrimSpace(cfg.LLMModel) == "" {
			return errors.New("config: llm.model is required (or set LLM_MODEL)")
		}
	default:
		return fmt.Errorf("config: unknown backend %q (want remote, local or openai)", cfg.Backend)
	}

	switch cfg.Source {
	case "", SourceBrowser, SourceHTTP, SourceFile:
	default:
		return fmt.Errorf("config: unknown source %q (want browser, http or file)", cfg.Source)
	}
	if _, err := local.ParseDecodeMode(cfg.DecodeMode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.RemoteRetries < 0 || cfg.MaxInputTokens < 0 || cfg.MaxLength < 0 || cfg.MinLength < 0 || cfg.CacheMaxEntries < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if cfg.MaxLength > 0 && cfg.MinLength > cfg.MaxLength {
		return errors.New("config: local.minLength exceeds local.maxLength")
	}
	return nil
}
