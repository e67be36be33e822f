// Package config loads and validates sitegauge configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Browser BrowserConfig `mapstructure:"browser"`
	Output  OutputConfig  `mapstructure:"output"`
	Probes  ProbesConfig  `mapstructure:"probes"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlConfig governs traversal budgets and pacing.
type CrawlConfig struct {
	StartURL         string `mapstructure:"start_url"`
	MaxPages         int    `mapstructure:"max_pages"`
	MaxDepth         int    `mapstructure:"max_depth"`
	RequestDelaySecs int    `mapstructure:"request_delay_seconds"`
	UserAgent        string `mapstructure:"user_agent"`
}

// BrowserConfig configures the headless browser subsystem.
type BrowserConfig struct {
	Headless       bool `mapstructure:"headless"`
	NavTimeoutSecs int  `mapstructure:"nav_timeout_seconds"`
}

// OutputConfig sets the root directory for persisted artifacts.
// Detail records, summaries and performance reports are written to
// subdirectories beneath BaseDir.
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// ProbesConfig holds endpoints and limits for the measurement probes.
type ProbesConfig struct {
	ValidatorURL         string `mapstructure:"validator_url"`
	ValidatorFallbackURL string `mapstructure:"validator_fallback_url"`
	AxeScriptPath        string `mapstructure:"axe_script_path"`
	AxeCDNURL            string `mapstructure:"axe_cdn_url"`
	CarbonEndpoint       string `mapstructure:"carbon_endpoint"`
	CarbonDelaySecs      int    `mapstructure:"carbon_delay_seconds"`
	CSSMaxBytes          int    `mapstructure:"css_max_bytes"`
	VitalsWindowSecs     int    `mapstructure:"vitals_window_seconds"`
	MaxViolations        int    `mapstructure:"max_violations"`
}

// ServerConfig controls the optional debug/metrics HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEGAUGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.max_pages", 10)
	v.SetDefault("crawl.max_depth", 2)
	v.SetDefault("crawl.request_delay_seconds", 2)
	v.SetDefault("crawl.user_agent", "sitegauge/0.1 (+https://github.com/sitegauge/sitegauge)")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("output.base_dir", "reports")
	v.SetDefault("probes.validator_url", "http://localhost:8888")
	v.SetDefault("probes.validator_fallback_url", "https://validator.w3.org/nu/")
	v.SetDefault("probes.axe_script_path", "")
	v.SetDefault("probes.axe_cdn_url", "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.10.2/axe.min.js")
	v.SetDefault("probes.carbon_endpoint", "https://api.websitecarbon.com/site")
	v.SetDefault("probes.carbon_delay_seconds", 1)
	v.SetDefault("probes.css_max_bytes", 1536*1024)
	v.SetDefault("probes.vitals_window_seconds", 3)
	v.SetDefault("probes.max_violations", 25)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawl.StartURL) == "" {
		return fmt.Errorf("crawl.start_url is required")
	}
	u, err := url.Parse(c.Crawl.StartURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("crawl.start_url must be an absolute URL")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must be >= 0")
	}
	if c.Browser.NavTimeoutSecs <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Probes.CSSMaxBytes <= 0 {
		return fmt.Errorf("probes.css_max_bytes must be > 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when server is enabled")
	}
	return nil
}

// RequestDelay converts the configured inter-request pause into a duration.
func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Crawl.RequestDelaySecs) * time.Second
}

// NavTimeout converts the configured navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSecs) * time.Second
}
