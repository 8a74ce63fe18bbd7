package config

import (
	"os"
	"time"
)

const (
	defaultBaseApiUrl   = "https://api.finchat-advisory.ru/api/v1"
	defaultStreamUrl    = "wss://api.finchat-advisory.ru/ws/alerts"
	defaultHistoryPath  = "finchatui.db"
	defaultSessionTitle = "New Chat"

	defaultRequestTimeout = time.Second * 10
	defaultRedirectDelay  = time.Second * 3
)

type Config struct {
	BaseURL        string
	StreamURL      string
	HistoryPath    string
	SessionTitle   string
	RequestTimeout time.Duration
	RedirectDelay  time.Duration
}

// NewConfig returns a Config with defaults, overridden by environment
// variables where set.
func NewConfig() *Config {
	cfg := &Config{
		BaseURL:        defaultBaseApiUrl,
		StreamURL:      defaultStreamUrl,
		HistoryPath:    defaultHistoryPath,
		SessionTitle:   defaultSessionTitle,
		RequestTimeout: defaultRequestTimeout,
		RedirectDelay:  defaultRedirectDelay,
	}
	if v := os.Getenv("FINCHAT_API_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("FINCHAT_STREAM_URL"); v != "" {
		cfg.StreamURL = v
	}
	if v := os.Getenv("FINCHAT_HISTORY_PATH"); v != "" {
		cfg.HistoryPath = v
	}
	if v := os.Getenv("FINCHAT_SESSION_TITLE"); v != "" {
		cfg.SessionTitle = v
	}
	if v := os.Getenv("FINCHAT_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = d
		}
	}
	if v := os.Getenv("FINCHAT_REDIRECT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RedirectDelay = d
		}
	}
	return cfg
}
