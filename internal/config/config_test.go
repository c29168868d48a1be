package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.FetchMode != FetchDirectFirst {
		t.Errorf("default fetch mode = %q, want %s", cfg.FetchMode, FetchDirectFirst)
	}
	if cfg.Language != "en-US" {
		t.Errorf("default language = %q, want en-US", cfg.Language)
	}
	if cfg.FetchTimeout() != 10*time.Second {
		t.Errorf("default fetch timeout = %s, want 10s", cfg.FetchTimeout())
	}
	if !cfg.History {
		t.Error("default history should be true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"invalid fetch mode", func(c *Config) { c.FetchMode = "sideways" }, true},
		{"valid proxy-first", func(c *Config) { c.FetchMode = FetchProxyFirst }, false},
		{"proxy without placeholder", func(c *Config) { c.ProxyURL = "https://proxy.example/raw" }, true},
		{"empty proxy disables proxy path", func(c *Config) { c.ProxyURL = "" }, false},
		{"plain http proxy", func(c *Config) { c.ProxyURL = "http://proxy.example/?u={url}" }, true},
		{"remote plain http relay", func(c *Config) { c.RelayURL = "http://relay.example.com" }, true},
		{"https relay", func(c *Config) { c.RelayURL = "https://relay.example.com" }, false},
		{"zero fetch timeout", func(c *Config) { c.FetchTimeoutSeconds = 0 }, true},
		{"enrich shorter than fetch", func(c *Config) { c.EnrichTimeoutSeconds = 5 }, true},
		{"empty language", func(c *Config) { c.Language = " " }, true},
		{"bad country", func(c *Config) { c.Countries = []string{"USA"} }, true},
		{"good countries", func(c *Config) { c.Countries = []string{"us", "GB"} }, false},
		{"empty relay listen", func(c *Config) { c.Relay.Listen = "" }, true},
		{"zero rate", func(c *Config) { c.Relay.RatePerSecond = 0 }, true},
		{"zero burst", func(c *Config) { c.Relay.Burst = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromTOML(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Setenv("STREAMSCOUT_RELAY_URL", "")
	t.Setenv("TMDB_API_KEY", "")

	content := `
relay_url = "https://relay.example.com"
language = "de-DE"
fetch_mode = "proxy-first"
fetch_timeout_seconds = 5
countries = ["US", "DE"]
history = false

[relay]
listen = ":9000"
api_key = "from-file"
`
	dir := filepath.Join(tmpDir, "streamscout")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.RelayURL != "https://relay.example.com" {
		t.Errorf("relay_url = %q", cfg.RelayURL)
	}
	if cfg.Language != "de-DE" {
		t.Errorf("language = %q, want de-DE", cfg.Language)
	}
	if cfg.FetchMode != FetchProxyFirst {
		t.Errorf("fetch_mode = %q, want %s", cfg.FetchMode, FetchProxyFirst)
	}
	if cfg.FetchTimeout() != 5*time.Second {
		t.Errorf("fetch timeout = %s, want 5s", cfg.FetchTimeout())
	}
	if len(cfg.Countries) != 2 || cfg.Countries[1] != "DE" {
		t.Errorf("countries = %v", cfg.Countries)
	}
	if cfg.History {
		t.Error("history should be false")
	}
	if cfg.Relay.Listen != ":9000" {
		t.Errorf("relay.listen = %q", cfg.Relay.Listen)
	}
	// Unset keys in a table keep their defaults.
	if cfg.Relay.Upstream != "https://api.themoviedb.org/3" {
		t.Errorf("relay.upstream = %q, want default", cfg.Relay.Upstream)
	}
	if cfg.Relay.APIKey != "from-file" {
		t.Errorf("relay.api_key = %q, want from-file", cfg.Relay.APIKey)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("STREAMSCOUT_RELAY_URL", "http://localhost:9999")
	t.Setenv("TMDB_API_KEY", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RelayURL != "http://localhost:9999" {
		t.Errorf("relay_url = %q, want env override", cfg.RelayURL)
	}
	if cfg.Relay.APIKey != "from-env" {
		t.Errorf("api key = %q, want env override", cfg.Relay.APIKey)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Setenv("STREAMSCOUT_RELAY_URL", "")

	dir := filepath.Join(tmpDir, "streamscout")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`fetch_mode = "nope"`), 0644)

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject an invalid fetch_mode")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("STREAMSCOUT_RELAY_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() should not error on missing file: %v", err)
	}
	if cfg.RelayURL != Default().RelayURL {
		t.Errorf("missing file should return defaults, got relay_url = %q", cfg.RelayURL)
	}
}

func TestLoadDirectOnly(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Setenv("STREAMSCOUT_RELAY_URL", "")

	dir := filepath.Join(tmpDir, "streamscout")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`proxy_url = ""`), 0644)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ProxyURL != "" {
		t.Errorf("proxy_url = %q, want empty", cfg.ProxyURL)
	}
}

func TestHistoryPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmpDir)

	got, err := HistoryPath()
	if err != nil {
		t.Fatalf("HistoryPath() error: %v", err)
	}
	want := filepath.Join(tmpDir, "streamscout", "history.db")
	if got != want {
		t.Errorf("HistoryPath() = %q, want %q", got, want)
	}
}

func TestExpandPath(t *testing.T) {
	dir, err := ExpandPath("/tmp/streamscout.log")
	if err != nil {
		t.Fatalf("ExpandPath() error: %v", err)
	}
	if dir != "/tmp/streamscout.log" {
		t.Errorf("got %q, want /tmp/streamscout.log", dir)
	}
}
