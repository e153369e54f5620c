package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vburojevic/qcdash/internal/domain"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format   string `mapstructure:"format" yaml:"format" json:"format"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Quiet    bool   `mapstructure:"quiet" yaml:"quiet" json:"quiet"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// BaseURL is joined with relative source URLs. It may be an http(s)
	// URL or a local directory.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`

	// Sources overrides the default priority list when non-empty
	Sources []SourceConfig `mapstructure:"sources" yaml:"sources,omitempty" json:"sources,omitempty"`

	Retry    RetryConfig    `mapstructure:"retry" yaml:"retry" json:"retry"`
	Fallback FallbackConfig `mapstructure:"fallback" yaml:"fallback" json:"fallback"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http" json:"http"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch" json:"watch"`
}

// SourceConfig is one entry of the source priority list
type SourceConfig struct {
	Name       string `mapstructure:"name" yaml:"name" json:"name"`
	URL        string `mapstructure:"url" yaml:"url" json:"url"`
	Aggregated bool   `mapstructure:"aggregated" yaml:"aggregated" json:"aggregated"`
	Domain     string `mapstructure:"domain" yaml:"domain,omitempty" json:"domain,omitempty"`
}

// RetryConfig is the per-source retry budget
type RetryConfig struct {
	Attempts   int     `mapstructure:"attempts" yaml:"attempts" json:"attempts"`
	BaseDelay  string  `mapstructure:"base_delay" yaml:"base_delay" json:"base_delay"`
	Multiplier float64 `mapstructure:"multiplier" yaml:"multiplier" json:"multiplier"`
	MaxDelay   string  `mapstructure:"max_delay" yaml:"max_delay,omitempty" json:"max_delay,omitempty"`
}

// FallbackConfig controls the degraded-mode dataset
type FallbackConfig struct {
	// Policy is visible, silent or disabled
	Policy string `mapstructure:"policy" yaml:"policy" json:"policy"`
	// File replaces the embedded fallback dataset
	File string `mapstructure:"file" yaml:"file,omitempty" json:"file,omitempty"`
}

// HTTPConfig tunes the HTTP fetcher
type HTTPConfig struct {
	Timeout   string `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`
}

// WatchConfig holds watch command defaults
type WatchConfig struct {
	Interval string `mapstructure:"interval" yaml:"interval" json:"interval"`
}

// Meta describes where the loaded configuration came from
type Meta struct {
	Path string
	Env  []string
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:   "ndjson",
		LogLevel: "info",
		BaseURL:  "data",
		Retry: RetryConfig{
			Attempts:   3,
			BaseDelay:  "1s",
			Multiplier: 1.5,
		},
		Fallback: FallbackConfig{Policy: "visible"},
		HTTP: HTTPConfig{
			Timeout:   "30s",
			UserAgent: "qcdash",
		},
		Watch: WatchConfig{Interval: "5m"},
	}
}

// Load loads configuration from files and environment
// Config file search order (highest precedence first):
// 1. ./.qcdash.yaml or ./.qcdash.yml
// 2. ~/.qcdash.yaml or ~/.qcdash.yml
// 3. $XDG_CONFIG_HOME/qcdash/config.yaml (or ~/.config/qcdash/config.yaml)
// 4. /etc/qcdash/config.yaml
func Load() (*Config, error) {
	cfg, _, err := LoadWithMeta()
	return cfg, err
}

// LoadWithMeta is Load plus the file path and the environment variables
// that were applied
func LoadWithMeta() (*Config, *Meta, error) {
	return LoadPath(findConfigFile())
}

// LoadPath loads path, or the defaults when path is empty, and applies
// environment overrides
func LoadPath(path string) (*Config, *Meta, error) {
	meta := &Meta{Path: path}

	cfg := Default()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	meta.Env = applyEnvOverrides(cfg)
	return cfg, meta, nil
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	names := []string{".qcdash.yaml", ".qcdash.yml", "qcdash.yaml", "qcdash.yml"}

	home, homeErr := os.UserHomeDir()
	configDir, configDirErr := os.UserConfigDir()

	var searchPaths []string

	// 1. Current directory
	if cwd, err := os.Getwd(); err == nil {
		searchPaths = append(searchPaths, cwd)
	}

	// 2. Home directory
	if homeErr == nil {
		searchPaths = append(searchPaths, home)
	}

	for _, dir := range searchPaths {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	// 3. Config directory, 4. system config
	var dirs []string
	if configDirErr == nil {
		dirs = append(dirs, filepath.Join(configDir, "qcdash"))
	}
	dirs = append(dirs, "/etc/qcdash")

	for _, dir := range dirs {
		for _, name := range []string{"config.yaml", "config.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}

// applyEnvOverrides applies QCDASH_* environment variables and returns
// the names of those that were set
func applyEnvOverrides(cfg *Config) []string {
	var applied []string
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
			applied = append(applied, name)
		}
	}
	flag := func(name string, dst *bool) {
		if v := os.Getenv(name); v == "true" || v == "1" {
			*dst = true
			applied = append(applied, name)
		}
	}

	str("QCDASH_FORMAT", &cfg.Format)
	str("QCDASH_LOG_LEVEL", &cfg.LogLevel)
	flag("QCDASH_QUIET", &cfg.Quiet)
	flag("QCDASH_VERBOSE", &cfg.Verbose)
	str("QCDASH_BASE_URL", &cfg.BaseURL)
	str("QCDASH_FALLBACK_POLICY", &cfg.Fallback.Policy)
	str("QCDASH_FALLBACK_FILE", &cfg.Fallback.File)
	str("QCDASH_HTTP_TIMEOUT", &cfg.HTTP.Timeout)
	str("QCDASH_WATCH_INTERVAL", &cfg.Watch.Interval)

	if v := os.Getenv("QCDASH_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.Attempts = n
			applied = append(applied, "QCDASH_RETRY_ATTEMPTS")
		}
	}
	return applied
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigFile returns the path to the config file that would be loaded
func ConfigFile() string {
	return findConfigFile()
}

// Validate checks enumerations and durations
func (c *Config) Validate() error {
	switch c.Format {
	case "ndjson", "text":
	default:
		return fmt.Errorf("format: unknown value %q (want ndjson or text)", c.Format)
	}
	switch c.Fallback.Policy {
	case "", "visible", "silent", "disabled":
	default:
		return fmt.Errorf("fallback.policy: unknown value %q (want visible, silent or disabled)", c.Fallback.Policy)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts: must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier: must be at least 1, got %g", c.Retry.Multiplier)
	}

	for key, val := range map[string]string{
		"retry.base_delay": c.Retry.BaseDelay,
		"retry.max_delay":  c.Retry.MaxDelay,
		"http.timeout":     c.HTTP.Timeout,
		"watch.interval":   c.Watch.Interval,
	} {
		if _, err := parseDuration(val); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	for i, s := range c.Sources {
		if s.URL == "" {
			return fmt.Errorf("sources[%d]: url is required", i)
		}
		if s.Domain == "" {
			continue
		}
		if s.Aggregated {
			return fmt.Errorf("sources[%d]: aggregated sources cannot set a domain", i)
		}
		if _, ok := domain.ParseDomain(s.Domain); !ok {
			return fmt.Errorf("sources[%d]: unknown domain %q", i, s.Domain)
		}
	}
	return nil
}

// BaseDelayDuration returns the parsed base delay
func (r RetryConfig) BaseDelayDuration() time.Duration {
	d, _ := parseDuration(r.BaseDelay)
	return d
}

// MaxDelayDuration returns the parsed delay cap; zero means uncapped
func (r RetryConfig) MaxDelayDuration() time.Duration {
	d, _ := parseDuration(r.MaxDelay)
	return d
}

// TimeoutDuration returns the parsed per-request timeout
func (h HTTPConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration(h.Timeout)
	return d
}

// IntervalDuration returns the parsed refresh interval
func (w WatchConfig) IntervalDuration() time.Duration {
	d, _ := parseDuration(w.Interval)
	return d
}

// parseDuration accepts Go durations; empty means zero
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
