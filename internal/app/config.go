package app

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	AnalyticsAPIURL        string        `envconfig:"ANALYTICS_API_URL" required:"true"`
	AnalyticsAPITimeout    time.Duration `envconfig:"ANALYTICS_API_TIMEOUT" default:"10s"`
	AnalyticsAPIMaxRetries int           `envconfig:"ANALYTICS_API_MAX_RETRIES" default:"2"`

	RedisAddr string        `envconfig:"REDIS_ADDR"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	ActivePollInterval  time.Duration `envconfig:"ACTIVE_POLL_INTERVAL" default:"60s"`
	ActiveWindowMinutes int           `envconfig:"ACTIVE_WINDOW_MINUTES" default:"5"`
	DefaultPageLimit    int           `envconfig:"DEFAULT_PAGE_LIMIT" default:"10"`
	DailyStatsDays      int           `envconfig:"DAILY_STATS_DAYS" default:"7"`
	DarkMode            bool          `envconfig:"DARK_MODE" default:"false"`

	ExportDir  string `envconfig:"EXPORT_DIR"`
	WarmupCron string `envconfig:"WARMUP_CRON" default:"*/5 * * * *"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express as tags.
func (c *Config) Validate() error {
	if c.AnalyticsAPIURL == "" {
		return errors.New("analytics api url must be provided")
	}
	u, err := url.Parse(c.AnalyticsAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("analytics api url %q is not absolute", c.AnalyticsAPIURL)
	}
	if c.ActivePollInterval <= 0 {
		return errors.New("active poll interval must be positive")
	}
	if c.ActiveWindowMinutes <= 0 {
		return errors.New("active window must be positive")
	}
	if c.DefaultPageLimit <= 0 {
		return errors.New("default page limit must be positive")
	}
	if c.DailyStatsDays <= 0 {
		return errors.New("daily stats days must be positive")
	}
	if c.AnalyticsAPIMaxRetries < 0 {
		return errors.New("analytics api retries cannot be negative")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
