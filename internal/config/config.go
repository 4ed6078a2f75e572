// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/kestrelchat/kestrel/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete kestrel configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Provider ProviderConfig `toml:"provider"`
	Archive  ArchiveConfig  `toml:"archive"`
	UI       UIConfig       `toml:"ui"`
}

// ServerConfig contains the HTTP server and admission settings.
type ServerConfig struct {
	// Host is the listen address.
	Host string `toml:"host"`
	// Port is the listen port.
	Port int `toml:"port"`
	// MaxMessageLength rejects oversized chat messages at admission.
	MaxMessageLength int `toml:"max_message_length"`
	// RateLimitPerMinute caps requests per client IP. 0 disables the limiter.
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
	// RateLimitBurst is the limiter's burst allowance.
	RateLimitBurst int `toml:"rate_limit_burst"`
	// StreamTimeoutSecs bounds the total duration of one SSE stream.
	StreamTimeoutSecs int `toml:"stream_timeout_secs"`
}

// ProviderConfig contains the completion backend settings.
type ProviderConfig struct {
	// BaseURL is the OpenAI-compatible API root, e.g. "https://api.openai.com/v1".
	BaseURL string `toml:"base_url"`
	// APIKey authenticates to the backend. Prefer the KESTREL_API_KEY
	// environment variable over storing the key on disk.
	APIKey string `toml:"api_key"`
	// DefaultModel is used when a request names no model.
	DefaultModel string `toml:"default_model"`
	// AllowedModels is the admission allow-list.
	AllowedModels []string `toml:"allowed_models"`
	// TimeoutSecs bounds non-streaming provider calls.
	TimeoutSecs int `toml:"timeout_secs"`
	// MaxTokens caps the completion length per call.
	MaxTokens int `toml:"max_tokens"`
	// Temperature is the sampling temperature.
	Temperature float64 `toml:"temperature"`
}

// ArchiveConfig contains the transcript archive settings.
type ArchiveConfig struct {
	// Enabled turns on SQLite transcript archiving.
	Enabled bool `toml:"enabled"`
	// Path is the database file (empty = ~/.kestrel/archive.db).
	Path string `toml:"path"`
}

// UIConfig contains chat view settings.
type UIConfig struct {
	// Theme is "dark", "light", or "auto".
	Theme string `toml:"theme"`
	// ShowTimestamps displays per-message timestamps in the transcript.
	ShowTimestamps bool `toml:"show_timestamps"`
	// ContextWindow is how many trailing messages accompany each send.
	ContextWindow int `toml:"context_window"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with built-in default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "127.0.0.1",
			Port:               8080,
			MaxMessageLength:   8000,
			RateLimitPerMinute: 60,
			RateLimitBurst:     10,
			StreamTimeoutSecs:  120,
		},
		Provider: ProviderConfig{
			BaseURL:      "https://api.openai.com/v1",
			DefaultModel: "gpt-4o-mini",
			AllowedModels: []string{
				"gpt-4-turbo", "gpt-4", "gpt-3.5-turbo", "gpt-4o", "gpt-4o-mini",
			},
			TimeoutSecs: 60,
			MaxTokens:   2000,
			Temperature: 0.7,
		},
		Archive: ArchiveConfig{
			Enabled: false,
		},
		UI: UIConfig{
			Theme:          "dark",
			ShowTimestamps: false,
			ContextWindow:  10,
		},
	}
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// Dir returns the kestrel configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".kestrel"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ArchivePath resolves the archive database path, defaulting under the
// config directory.
func (c *Config) ArchivePath() (string, error) {
	if c.Archive.Path != "" {
		return c.Archive.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "archive.db"), nil
}

// Addr returns the server's host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads config.toml from the config directory, falling back to
// defaults when absent. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads and validates configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the config directory as TOML. The file
// holds the API key, so it is written owner-only.
func (c *Config) Save() error {
	if err := EnsureDir(); err != nil {
		return err
	}
	path, err := Path()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies KESTREL_* environment variables on top of the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("KESTREL_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("KESTREL_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("KESTREL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxMessageLength <= 0 {
		return fmt.Errorf("server.max_message_length must be positive")
	}
	if c.Server.StreamTimeoutSecs <= 0 {
		return fmt.Errorf("server.stream_timeout_secs must be positive")
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("server.rate_limit_per_minute must not be negative")
	}

	u, err := url.Parse(c.Provider.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("provider.base_url %q is not a valid URL", c.Provider.BaseURL)
	}
	if c.Provider.DefaultModel == "" {
		return fmt.Errorf("provider.default_model must be set")
	}
	if len(c.Provider.AllowedModels) == 0 {
		return fmt.Errorf("provider.allowed_models must not be empty")
	}
	if !c.ModelAllowed(c.Provider.DefaultModel) {
		return fmt.Errorf("provider.default_model %q is not in allowed_models", c.Provider.DefaultModel)
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return fmt.Errorf("provider.temperature %.2f out of range [0, 2]", c.Provider.Temperature)
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("ui.theme %q must be dark, light or auto", c.UI.Theme)
	}
	return nil
}

// ModelAllowed reports whether model is on the admission allow-list.
func (c *Config) ModelAllowed(model string) bool {
	for _, m := range c.Provider.AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}
