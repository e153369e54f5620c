package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// isolate points every search location at empty temp dirs
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	home := filepath.Join(tmpDir, "home")
	require.NoError(t, os.MkdirAll(home, 0o755))
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(origDir))
	})
	return tmpDir
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NotNil(t, cfg)
	assert.Equal(t, "ndjson", cfg.Format)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Quiet)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "data", cfg.BaseURL)
	assert.Empty(t, cfg.Sources)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelayDuration())
	assert.Equal(t, 1.5, cfg.Retry.Multiplier)
	assert.Equal(t, time.Duration(0), cfg.Retry.MaxDelayDuration())
	assert.Equal(t, "visible", cfg.Fallback.Policy)
	assert.Equal(t, 30*time.Second, cfg.HTTP.TimeoutDuration())
	assert.Equal(t, 5*time.Minute, cfg.Watch.IntervalDuration())
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("returns defaults when no config file exists", func(t *testing.T) {
		isolate(t)

		cfg, meta, err := LoadWithMeta()
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "ndjson", cfg.Format)
		assert.Empty(t, meta.Path)
	})

	t.Run("finds config in current directory", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".qcdash.yaml"), []byte("format: text\n"), 0o644))

		cfg, meta, err := LoadWithMeta()
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.Format)
		assert.Equal(t, ".qcdash.yaml", filepath.Base(meta.Path))
	})

	t.Run("finds config in XDG directory", func(t *testing.T) {
		isolate(t)
		configDir, err := os.UserConfigDir()
		require.NoError(t, err)
		xdg := filepath.Join(configDir, "qcdash")
		require.NoError(t, os.MkdirAll(xdg, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(xdg, "config.yaml"), []byte("log_level: debug\n"), 0o644))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, filepath.Join(xdg, "config.yaml"), ConfigFile())
	})

	t.Run("current directory wins over home", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "home", ".qcdash.yaml"), []byte("format: ndjson\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".qcdash.yml"), []byte("format: text\n"), 0o644))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.Format)
	})
}

func TestLoadFromFile(t *testing.T) {
	t.Run("returns error for non-existent file", func(t *testing.T) {
		cfg, err := LoadFromFile("/nonexistent/path/config.yaml")
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "bad.yaml")
		err := os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
		require.NoError(t, err)

		cfg, err := LoadFromFile(configPath)
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("parses all config fields", func(t *testing.T) {
		tmpDir := t.TempDir()
		configContent := `
format: text
log_level: warn
quiet: true
verbose: true
base_url: https://qc.example.com/data
sources:
  - name: complete
    url: complete-data.json
    aggregated: true
  - name: internal
    url: internal.json
    domain: Internal
retry:
  attempts: 5
  base_delay: 250ms
  multiplier: 2
  max_delay: 4s
fallback:
  policy: silent
  file: /srv/qc/fallback.json
http:
  timeout: 10s
  user_agent: qc-bot
watch:
  interval: 90s
`
		configPath := filepath.Join(tmpDir, "qcdash.yaml")
		err := os.WriteFile(configPath, []byte(configContent), 0644)
		require.NoError(t, err)

		cfg, err := LoadFromFile(configPath)
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())

		assert.Equal(t, "text", cfg.Format)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.True(t, cfg.Quiet)
		assert.True(t, cfg.Verbose)
		assert.Equal(t, "https://qc.example.com/data", cfg.BaseURL)
		require.Len(t, cfg.Sources, 2)
		assert.Equal(t, SourceConfig{Name: "complete", URL: "complete-data.json", Aggregated: true}, cfg.Sources[0])
		assert.Equal(t, "Internal", cfg.Sources[1].Domain)
		assert.Equal(t, 5, cfg.Retry.Attempts)
		assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelayDuration())
		assert.Equal(t, 2.0, cfg.Retry.Multiplier)
		assert.Equal(t, 4*time.Second, cfg.Retry.MaxDelayDuration())
		assert.Equal(t, "silent", cfg.Fallback.Policy)
		assert.Equal(t, "/srv/qc/fallback.json", cfg.Fallback.File)
		assert.Equal(t, 10*time.Second, cfg.HTTP.TimeoutDuration())
		assert.Equal(t, "qc-bot", cfg.HTTP.UserAgent)
		assert.Equal(t, 90*time.Second, cfg.Watch.IntervalDuration())
	})

	t.Run("keeps defaults for omitted keys", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "qcdash.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("retry:\n  attempts: 2\n"), 0644))

		cfg, err := LoadFromFile(configPath)
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.Retry.Attempts)
		assert.Equal(t, 1.5, cfg.Retry.Multiplier)
		assert.Equal(t, "visible", cfg.Fallback.Policy)
	})
}

func TestConfigEnvironmentVariables(t *testing.T) {
	isolate(t)
	t.Setenv("QCDASH_FORMAT", "text")
	t.Setenv("QCDASH_BASE_URL", "https://env.example.com")
	t.Setenv("QCDASH_FALLBACK_POLICY", "disabled")
	t.Setenv("QCDASH_QUIET", "1")
	t.Setenv("QCDASH_RETRY_ATTEMPTS", "7")

	cfg, meta, err := LoadWithMeta()
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "https://env.example.com", cfg.BaseURL)
	assert.Equal(t, "disabled", cfg.Fallback.Policy)
	assert.True(t, cfg.Quiet)
	assert.Equal(t, 7, cfg.Retry.Attempts)
	assert.ElementsMatch(t, []string{
		"QCDASH_FORMAT", "QCDASH_BASE_URL", "QCDASH_FALLBACK_POLICY", "QCDASH_QUIET", "QCDASH_RETRY_ATTEMPTS",
	}, meta.Env)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown format", func(c *Config) { c.Format = "xml" }, "format"},
		{"unknown policy", func(c *Config) { c.Fallback.Policy = "loud" }, "fallback.policy"},
		{"zero attempts", func(c *Config) { c.Retry.Attempts = 0 }, "retry.attempts"},
		{"shrinking multiplier", func(c *Config) { c.Retry.Multiplier = 0.5 }, "retry.multiplier"},
		{"bad delay", func(c *Config) { c.Retry.BaseDelay = "soon" }, "retry.base_delay"},
		{"negative timeout", func(c *Config) { c.HTTP.Timeout = "-1s" }, "http.timeout"},
		{"bad interval", func(c *Config) { c.Watch.Interval = "5" }, "watch.interval"},
		{"source without url", func(c *Config) { c.Sources = []SourceConfig{{Name: "x"}} }, "url is required"},
		{"unknown domain", func(c *Config) { c.Sources = []SourceConfig{{URL: "x.json", Domain: "Finance"}} }, "unknown domain"},
		{"aggregated with domain", func(c *Config) {
			c.Sources = []SourceConfig{{URL: "x.json", Aggregated: true, Domain: "Internal"}}
		}, "aggregated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWatch(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "qcdash.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("format: ndjson\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Watch(ctx, configPath, zaptest.NewLogger(t), func(c *Config) {
			select {
			case changes <- c:
			default:
			}
		})
	}()

	// the watcher registers asynchronously; keep rewriting until it reports
	// the new format. Every config it delivers must be the written one.
	deadline := time.After(5 * time.Second)
	var got *Config
	for got == nil || got.Format != "text" {
		require.NoError(t, os.WriteFile(configPath, []byte("format: text\n"), 0o644))
		select {
		case got = <-changes:
			require.Equal(t, "text", got.Format)
		case <-time.After(300 * time.Millisecond):
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}

	cancel()
	require.NoError(t, <-errCh)
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr error
		format  string
	}{
		{name: "empty file is a save in progress", path: write("empty.yaml", ""), wantErr: errEmptyConfig},
		{name: "valid file", path: write("ok.yaml", "format: text\n"), format: "text"},
		{name: "invalid value", path: write("bad.yaml", "format: xml\n")},
		{name: "missing file", path: filepath.Join(dir, "gone.yaml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := reload(tt.path)
			if tt.format == "" {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.format, cfg.Format)
		})
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), nil, func(*Config) {})
	assert.Error(t, err)
}
