package config

import (
	"time"

	"golang-price-watcher/pkg/browser"
	"golang-price-watcher/pkg/config"
)

// Tracker holds the refresh pipeline configuration.
type Tracker struct {
	// Cron spec driving the scheduler tick, e.g. "@every 1m".
	TickSpec string `mapstructure:"tick_spec"`

	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	RenderTimeout time.Duration `mapstructure:"render_timeout"`

	// Politeness delay bounds between consecutive item checks in one batch.
	MinItemDelay time.Duration `mapstructure:"min_item_delay"`
	MaxItemDelay time.Duration `mapstructure:"max_item_delay"`

	// Next-check jitter spread: the offset is drawn from [-spread, +spread].
	JitterSpread time.Duration `mapstructure:"jitter_spread"`

	// Hosts known to require client-side rendering; plain fetch is skipped.
	RenderRequiredHosts []string `mapstructure:"render_required_hosts"`

	// How long to avoid re-rendering a host after a failed challenge wait.
	RenderBackoff time.Duration `mapstructure:"render_backoff"`

	// Oracle answers below this confidence are advisory only.
	OracleMinConfidence float64 `mapstructure:"oracle_min_confidence"`

	// Page markup is truncated to this many bytes before prompting.
	OracleMaxHTMLBytes int `mapstructure:"oracle_max_html_bytes"`

	// Alert resend suppression.
	AlertCacheDuration          time.Duration `mapstructure:"alert_cache_duration"`
	AlertResendThresholdPercent float64       `mapstructure:"alert_resend_threshold_percent"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	BaseURL             string `mapstructure:"base_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// AI holds configuration for the extraction/arbitration oracle.
type AI struct {
	// Provider selects the oracle backend; "none" disables it entirely.
	Provider string `mapstructure:"provider"`
}

// Config holds the full configuration for the tracker service.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	Redis    config.Redis    `mapstructure:"redis"`
	API      config.API      `mapstructure:"api"`
	Telegram config.Telegram `mapstructure:"telegram"`
	AI       AI              `mapstructure:"ai"`
	Gemini   Gemini          `mapstructure:"gemini"`
	Tracker  Tracker         `mapstructure:"tracker"`
	Renderer browser.Config  `mapstructure:"renderer"`
}

// Load loads the tracker configuration from the given path and applies
// defaults for unset pipeline knobs.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	t := &cfg.Tracker
	if t.TickSpec == "" {
		t.TickSpec = "@every 1m"
	}
	if t.FetchTimeout <= 0 {
		t.FetchTimeout = 20 * time.Second
	}
	if t.RenderTimeout <= 0 {
		t.RenderTimeout = 60 * time.Second
	}
	if t.MinItemDelay <= 0 {
		t.MinItemDelay = 2 * time.Second
	}
	if t.MaxItemDelay <= 0 {
		t.MaxItemDelay = 5 * time.Second
	}
	if t.JitterSpread <= 0 {
		t.JitterSpread = 300 * time.Second
	}
	if t.RenderBackoff <= 0 {
		t.RenderBackoff = 10 * time.Minute
	}
	if t.OracleMinConfidence <= 0 {
		t.OracleMinConfidence = 0.75
	}
	if t.OracleMaxHTMLBytes <= 0 {
		t.OracleMaxHTMLBytes = 60000
	}
	if t.AlertCacheDuration <= 0 {
		t.AlertCacheDuration = 6 * time.Hour
	}
	if t.AlertResendThresholdPercent <= 0 {
		t.AlertResendThresholdPercent = 5
	}
}
