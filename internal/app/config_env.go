package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig is the environment surface. Pointer fields distinguish unset from
// explicitly false or zero.
type envConfig struct {
	Backend     string        `env:"PAGEBRIEF_BACKEND"`
	Source      string        `env:"PAGEBRIEF_SOURCE"`
	PageURL     string        `env:"PAGE_URL"`
	CDPURL      string        `env:"CDP_URL"`
	RemoteURL   string        `env:"REMOTE_URL"`
	ModelDir    string        `env:"MODEL_DIR"`
	ORTLibrary  string        `env:"ORT_LIB"`
	LLMBaseURL  string        `env:"LLM_BASE_URL"`
	LLMModel    string        `env:"LLM_MODEL"`
	LLMAPIKey   string        `env:"LLM_API_KEY"`
	Language    string        `env:"LANGUAGE"`
	CacheDir    string        `env:"CACHE_DIR"`
	CacheMaxAge time.Duration `env:"CACHE_MAX_AGE"`
	ListenAddr  string        `env:"LISTEN_ADDR"`
	Verbose     *bool         `env:"VERBOSE"`
	StrictPerms *bool         `env:"CACHE_STRICT_PERMS"`
}

func parseEnv() (envConfig, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return ec, fmt.Errorf("config: environment: %w", err)
	}
	return ec, nil
}

// ApplyEnvOverrides overrides cfg fields with the environment variables that
// are set. It runs after the config file and before flags are re-applied, so
// env beats the file and flags beat env.
func ApplyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	ec, err := parseEnv()
	if err != nil {
		return err
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Backend, ec.Backend)
	set(&cfg.Source, ec.Source)
	set(&cfg.PageURL, ec.PageURL)
	set(&cfg.CDPURL, ec.CDPURL)
	set(&cfg.RemoteURL, ec.RemoteURL)
	set(&cfg.ModelDir, ec.ModelDir)
	set(&cfg.ORTLibrary, ec.ORTLibrary)
	set(&cfg.LLMBaseURL, ec.LLMBaseURL)
	set(&cfg.LLMModel, ec.LLMModel)
	set(&cfg.LLMAPIKey, ec.LLMAPIKey)
	set(&cfg.LanguageHint, ec.Language)
	set(&cfg.CacheDir, ec.CacheDir)
	set(&cfg.ListenAddr, ec.ListenAddr)
	if ec.CacheMaxAge > 0 {
		cfg.CacheMaxAge = ec.CacheMaxAge
	}
	if ec.Verbose != nil {
		cfg.Verbose = *ec.Verbose
	}
	if ec.StrictPerms != nil {
		cfg.CacheStrictPerms = *ec.StrictPerms
	}
	return nil
}
