// Package config handles application configuration
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// Environment overrides.
const (
	EnvAPIURL  = "TASKDASH_API_URL"
	EnvTimeout = "TASKDASH_TIMEOUT"
	EnvStore   = "TASKDASH_STORE"
)

// Limits enforced by Validate.
const (
	MinTimeout         = time.Second
	MaxTimeout         = 120 * time.Second
	MinRefreshInterval = 5 * time.Second

	defaultTimeout  = 15 * time.Second
	defaultInterval = 30 * time.Second
	defaultCacheTTL = 5 * time.Minute
)

// APIConfig holds task service settings
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	Timeout        string `yaml:"timeout"`          // e.g. "15s"
	MaxRetries     int    `yaml:"max_retries"`      // retries after a 429
	RetryBaseDelay string `yaml:"retry_base_delay"` // first 429 backoff
}

// RefreshConfig holds auto-refresh settings
type RefreshConfig struct {
	Auto     bool   `yaml:"auto"`
	Interval string `yaml:"interval"`
}

// StoreConfig holds session store settings
type StoreConfig struct {
	Path       string `yaml:"path"`
	UseKeyring bool   `yaml:"use_keyring"`
}

// UIConfig holds user interface settings
type UIConfig struct {
	PageSize int    `yaml:"page_size"`
	Theme    string `yaml:"theme"`
	Weeks    int    `yaml:"weeks"`
}

// AnalyticsConfig holds analytics settings
type AnalyticsConfig struct {
	WindowDays int    `yaml:"window_days"`
	CacheTTL   string `yaml:"cache_ttl"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Verbose           bool  `yaml:"verbose"`
	BackgroundEnabled *bool `yaml:"background_enabled"` // default: true
}

// Config represents the application configuration
type Config struct {
	API       APIConfig       `yaml:"api"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Store     StoreConfig     `yaml:"store"`
	UI        UIConfig        `yaml:"ui"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8080"
	}
	if c.API.Timeout == "" {
		c.API.Timeout = defaultTimeout.String()
	}
	if c.Refresh.Interval == "" {
		c.Refresh.Interval = defaultInterval.String()
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(GetDataDir(), "session.db")
	}
	if c.UI.PageSize == 0 {
		c.UI.PageSize = 10
	}
	if c.UI.Theme == "" {
		c.UI.Theme = "light"
	}
	if c.UI.Weeks == 0 {
		c.UI.Weeks = 8
	}
}

// Load loads configuration from configPath, or the default XDG path if empty.
// A missing file is created from the sample. Environment overrides, including
// those from a .env file, are applied last.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath()
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		if err := writeSample(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		data = []byte(sampleConfig)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	LoadDotEnv("")
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// Parse decodes YAML and fills defaults for unset fields.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}
	cfg.applyDefaults()
	cfg.Store.Path = ExpandPath(cfg.Store.Path)
	return cfg, nil
}

// LoadDotEnv loads dir/.env (the working directory when dir is empty) into
// the process environment. Variables already set win. A missing file is not
// an error.
func LoadDotEnv(dir string) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// ApplyEnv applies the TASKDASH_* overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvAPIURL)); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvTimeout)); v != "" {
		c.API.Timeout = v
	}
	if v := strings.TrimSpace(getenv(EnvStore)); v != "" {
		c.Store.Path = ExpandPath(v)
	}
}

// writeSample writes the embedded sample, which carries the documentation comments.
func writeSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}

	timeout, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return fmt.Errorf("invalid api.timeout %q: %w", c.API.Timeout, err)
	}
	if timeout < MinTimeout || timeout > MaxTimeout {
		return fmt.Errorf("api.timeout must be between %s and %s, got %s", MinTimeout, MaxTimeout, timeout)
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries cannot be negative")
	}
	if c.API.RetryBaseDelay != "" {
		if _, err := time.ParseDuration(c.API.RetryBaseDelay); err != nil {
			return fmt.Errorf("invalid api.retry_base_delay %q: %w", c.API.RetryBaseDelay, err)
		}
	}

	interval, err := time.ParseDuration(c.Refresh.Interval)
	if err != nil {
		return fmt.Errorf("invalid refresh.interval %q: %w", c.Refresh.Interval, err)
	}
	if interval < MinRefreshInterval {
		return fmt.Errorf("refresh.interval must be at least %s, got %s", MinRefreshInterval, interval)
	}

	if c.UI.Theme != "light" && c.UI.Theme != "dark" {
		return fmt.Errorf("invalid ui.theme: %s (must be 'light' or 'dark')", c.UI.Theme)
	}
	if c.UI.PageSize <= 0 {
		return fmt.Errorf("ui.page_size must be greater than 0")
	}
	if c.UI.Weeks <= 0 {
		return fmt.Errorf("ui.weeks must be greater than 0")
	}
	if c.Analytics.WindowDays < 0 {
		return fmt.Errorf("analytics.window_days cannot be negative")
	}
	if c.Analytics.CacheTTL != "" {
		if _, err := time.ParseDuration(c.Analytics.CacheTTL); err != nil {
			return fmt.Errorf("invalid analytics.cache_ttl %q: %w", c.Analytics.CacheTTL, err)
		}
	}
	return nil
}

// GetTimeout returns the API timeout. Unparseable values fall back to 15s.
func (c *Config) GetTimeout() time.Duration {
	return parseDuration(c.API.Timeout, defaultTimeout)
}

// GetRetryBaseDelay returns the first 429 backoff, or 0 for the client default.
func (c *Config) GetRetryBaseDelay() time.Duration {
	return parseDuration(c.API.RetryBaseDelay, 0)
}

// GetRefreshInterval returns the auto-refresh period.
func (c *Config) GetRefreshInterval() time.Duration {
	return parseDuration(c.Refresh.Interval, defaultInterval)
}

// GetCacheTTL returns the analytics cache TTL.
func (c *Config) GetCacheTTL() time.Duration {
	return parseDuration(c.Analytics.CacheTTL, defaultCacheTTL)
}

// IsBackgroundLoggingEnabled returns whether the TUI writes a background log (default: true).
func (c *Config) IsBackgroundLoggingEnabled() bool {
	if c.Logging.BackgroundEnabled == nil {
		return true
	}
	return *c.Logging.BackgroundEnabled
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// DefaultPath returns the config file location.
func DefaultPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "taskdash")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "taskdash")
	}
	return filepath.Join(home, fallbackPath, "taskdash")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// GetCacheDir returns the cache directory following XDG spec
func GetCacheDir() string {
	return getXDGDir("XDG_CACHE_HOME", ".cache")
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
