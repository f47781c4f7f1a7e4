package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setXDG(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvTimeout, "")
	t.Setenv(EnvStore, "")
	return dir
}

// TestLoadCreatesSampleConfig verifies first run writes the documented sample.
func TestLoadCreatesSampleConfig(t *testing.T) {
	dir := setXDG(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	path := filepath.Join(dir, "config", "taskdash", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if string(data) != GetSampleConfig() {
		t.Error("created config should be the embedded sample")
	}

	if cfg.API.BaseURL != "http://localhost:8080" || cfg.GetTimeout() != 15*time.Second {
		t.Errorf("unexpected api defaults: %+v", cfg.API)
	}
	if cfg.Store.Path != filepath.Join(dir, "data", "taskdash", "session.db") {
		t.Errorf("store path = %s", cfg.Store.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("sample config should validate: %v", err)
	}
}

func TestLoadExistingFile(t *testing.T) {
	setXDG(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  base_url: "https://tasks.example.com"
  timeout: "45s"
refresh:
  auto: true
  interval: "1m"
ui:
  theme: dark
store:
  path: "~/taskdash/session.db"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "https://tasks.example.com" || cfg.GetTimeout() != 45*time.Second {
		t.Errorf("api = %+v", cfg.API)
	}
	if !cfg.Refresh.Auto || cfg.GetRefreshInterval() != time.Minute {
		t.Errorf("refresh = %+v", cfg.Refresh)
	}
	if cfg.UI.Theme != "dark" || cfg.UI.PageSize != 10 || cfg.UI.Weeks != 8 {
		t.Errorf("ui = %+v", cfg.UI)
	}
	if strings.HasPrefix(cfg.Store.Path, "~") {
		t.Errorf("store path not expanded: %s", cfg.Store.Path)
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("api: [unclosed")); err == nil {
		t.Error("expected YAML error")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	env := map[string]string{
		EnvAPIURL:  " https://env.example.com ",
		EnvTimeout: "20s",
		EnvStore:   "/tmp/taskdash-env.db",
	}
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.API.BaseURL != "https://env.example.com" || cfg.API.Timeout != "20s" || cfg.Store.Path != "/tmp/taskdash-env.db" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.API, cfg.Store)
	}

	before := *cfg
	cfg.ApplyEnv(func(string) string { return "" })
	if cfg.API != before.API || cfg.Store != before.Store {
		t.Error("empty env must not override")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	const key = "TASKDASH_DOTENV_TEST"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_ = os.Unsetenv(key)
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	LoadDotEnv(dir)
	if got := os.Getenv(key); got != "from-file" {
		t.Errorf("%s = %q", key, got)
	}

	LoadDotEnv(t.TempDir()) // missing file is ignored
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"timeout too short", func(c *Config) { c.API.Timeout = "500ms" }, "api.timeout"},
		{"timeout too long", func(c *Config) { c.API.Timeout = "3m" }, "api.timeout"},
		{"timeout garbage", func(c *Config) { c.API.Timeout = "soon" }, "api.timeout"},
		{"interval too short", func(c *Config) { c.Refresh.Interval = "2s" }, "refresh.interval"},
		{"bad theme", func(c *Config) { c.UI.Theme = "blue" }, "ui.theme"},
		{"bad page size", func(c *Config) { c.UI.PageSize = -1 }, "ui.page_size"},
		{"negative retries", func(c *Config) { c.API.MaxRetries = -1 }, "max_retries"},
		{"bad cache ttl", func(c *Config) { c.Analytics.CacheTTL = "x" }, "cache_ttl"},
		{"missing url", func(c *Config) { c.API.BaseURL = " " }, "base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{}
	if cfg.GetTimeout() != 15*time.Second || cfg.GetRefreshInterval() != 30*time.Second || cfg.GetCacheTTL() != 5*time.Minute {
		t.Error("unexpected duration defaults")
	}
	cfg.API.RetryBaseDelay = "bogus"
	if cfg.GetRetryBaseDelay() != 0 {
		t.Error("unparseable delay should fall back to 0")
	}
	if !cfg.IsBackgroundLoggingEnabled() {
		t.Error("background logging defaults to on")
	}
	off := false
	cfg.Logging.BackgroundEnabled = &off
	if cfg.IsBackgroundLoggingEnabled() {
		t.Error("explicit false ignored")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	t.Setenv("TASKDASH_DIR_TEST", "/srv")
	tests := map[string]string{
		"":                        "",
		"~/x.db":                  filepath.Join(home, "x.db"),
		"$TASKDASH_DIR_TEST/a.db": "/srv/a.db",
		"/abs/path.db":            "/abs/path.db",
	}
	for in, want := range tests {
		if got := ExpandPath(in); got != want {
			t.Errorf("ExpandPath(%q) = %q, want %q", in, got, want)
		}
	}
}
