// Package config handles TOML-based configuration loading and validation.
// The file is parsed as data only; environment variables and CLI flags are
// layered on top by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"streamscout/internal/httputil"
)

const appName = "streamscout"

// Fetch modes decide which enrichment path is tried first.
const (
	FetchDirectFirst = "direct-first"
	FetchProxyFirst  = "proxy-first"
)

// Config holds all application configuration.
type Config struct {
	RelayURL             string   `toml:"relay_url"`
	Language             string   `toml:"language"`
	FetchMode            string   `toml:"fetch_mode"`
	ProxyURL             string   `toml:"proxy_url"`
	FetchTimeoutSeconds  int      `toml:"fetch_timeout_seconds"`
	EnrichTimeoutSeconds int      `toml:"enrich_timeout_seconds"`
	Countries            []string `toml:"countries"`
	History              bool     `toml:"history"`
	Debug                bool     `toml:"debug"`
	LogFile              string   `toml:"log_file"`
	Relay                Relay    `toml:"relay"`
}

// Relay configures the metadata relay service.
type Relay struct {
	Listen        string  `toml:"listen"`
	Upstream      string  `toml:"upstream"`
	APIKey        string  `toml:"api_key"`
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		RelayURL:             "http://127.0.0.1:8787",
		Language:             "en-US",
		FetchMode:            FetchDirectFirst,
		ProxyURL:             "https://api.allorigins.win/raw?url={url}",
		FetchTimeoutSeconds:  10,
		EnrichTimeoutSeconds: 25,
		History:              true,
		Debug:                false,
		Relay: Relay{
			Listen:        "127.0.0.1:8787",
			Upstream:      "https://api.themoviedb.org/3",
			RatePerSecond: 20,
			Burst:         10,
		},
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file, merges it with defaults and applies
// environment overrides. If the config file doesn't exist, defaults are used.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		cfg.applyEnv()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnv overlays environment variables. The TMDB key is usually supplied
// this way so it never lands in a config file.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("STREAMSCOUT_RELAY_URL")); v != "" {
		c.RelayURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TMDB_API_KEY")); v != "" {
		c.Relay.APIKey = v
	}
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if err := httputil.ValidateURL(c.RelayURL); err != nil {
		return fmt.Errorf("relay_url: %w", err)
	}

	if strings.TrimSpace(c.Language) == "" {
		return fmt.Errorf("language cannot be empty")
	}

	switch c.FetchMode {
	case FetchDirectFirst, FetchProxyFirst:
	default:
		return fmt.Errorf("unsupported fetch_mode %q (valid: %s, %s)", c.FetchMode, FetchDirectFirst, FetchProxyFirst)
	}

	// An empty proxy_url disables the proxy path.
	if c.ProxyURL != "" {
		if !strings.Contains(c.ProxyURL, "{url}") {
			return fmt.Errorf("proxy_url must contain the {url} placeholder")
		}
		if err := httputil.ValidateURL(strings.ReplaceAll(c.ProxyURL, "{url}", "x")); err != nil {
			return fmt.Errorf("proxy_url: %w", err)
		}
	}

	if c.FetchTimeoutSeconds <= 0 || c.FetchTimeoutSeconds > 120 {
		return fmt.Errorf("fetch_timeout_seconds must be between 1 and 120, got %d", c.FetchTimeoutSeconds)
	}
	if c.EnrichTimeoutSeconds < c.FetchTimeoutSeconds {
		return fmt.Errorf("enrich_timeout_seconds (%d) must be at least fetch_timeout_seconds (%d)", c.EnrichTimeoutSeconds, c.FetchTimeoutSeconds)
	}

	for _, code := range c.Countries {
		if len(strings.TrimSpace(code)) != 2 {
			return fmt.Errorf("invalid country code %q in countries", code)
		}
	}

	if c.Relay.Listen == "" {
		return fmt.Errorf("relay.listen cannot be empty")
	}
	if err := httputil.ValidateURL(c.Relay.Upstream); err != nil {
		return fmt.Errorf("relay.upstream: %w", err)
	}
	if c.Relay.RatePerSecond <= 0 {
		return fmt.Errorf("relay.rate_per_second must be positive")
	}
	if c.Relay.Burst < 1 {
		return fmt.Errorf("relay.burst must be at least 1")
	}

	return nil
}

// FetchTimeout returns the per-stage enrichment fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// EnrichTimeout returns the overall timeout for one country enrichment.
func (c *Config) EnrichTimeout() time.Duration {
	return time.Duration(c.EnrichTimeoutSeconds) * time.Second
}

// dataDir returns the XDG-compliant data directory.
func dataDir() (string, error) {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, appName), nil
}

// HistoryPath returns the path to the lookup history database.
func HistoryPath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// ExpandPath resolves a leading ~ in a path.
func ExpandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		p = filepath.Join(home, p[2:])
	}
	return filepath.Abs(p)
}
