// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.StreamTimeoutSecs != 120 {
		t.Errorf("Server.StreamTimeoutSecs = %d, want 120", cfg.Server.StreamTimeoutSecs)
	}
	if cfg.Provider.DefaultModel != "gpt-4o-mini" {
		t.Errorf("Provider.DefaultModel = %q, want gpt-4o-mini", cfg.Provider.DefaultModel)
	}
	if len(cfg.Provider.AllowedModels) != 5 {
		t.Errorf("len(AllowedModels) = %d, want 5", len(cfg.Provider.AllowedModels))
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[server]
port = 9090
max_message_length = 500

[provider]
base_url = "http://localhost:4000/v1"
default_model = "gpt-4o"

[ui]
theme = "light"
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.MaxMessageLength != 500 {
		t.Errorf("Server.MaxMessageLength = %d, want 500", cfg.Server.MaxMessageLength)
	}
	// Unset fields keep defaults.
	if cfg.Server.StreamTimeoutSecs != 120 {
		t.Errorf("Server.StreamTimeoutSecs = %d, want default 120", cfg.Server.StreamTimeoutSecs)
	}
	if cfg.Provider.BaseURL != "http://localhost:4000/v1" {
		t.Errorf("Provider.BaseURL = %q", cfg.Provider.BaseURL)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("UI.Theme = %q, want light", cfg.UI.Theme)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KESTREL_API_KEY", "sk-env")
	t.Setenv("KESTREL_BASE_URL", "http://env.example/v1")
	t.Setenv("KESTREL_PORT", "7070")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Provider.APIKey != "sk-env" {
		t.Errorf("Provider.APIKey = %q, want sk-env", cfg.Provider.APIKey)
	}
	if cfg.Provider.BaseURL != "http://env.example/v1" {
		t.Errorf("Provider.BaseURL = %q", cfg.Provider.BaseURL)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
}

func TestEnvOverridesIgnoreBadPort(t *testing.T) {
	t.Setenv("KESTREL_PORT", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"zero message length", func(c *Config) { c.Server.MaxMessageLength = 0 }},
		{"zero stream timeout", func(c *Config) { c.Server.StreamTimeoutSecs = 0 }},
		{"bad base url", func(c *Config) { c.Provider.BaseURL = "not a url" }},
		{"empty default model", func(c *Config) { c.Provider.DefaultModel = "" }},
		{"empty allow-list", func(c *Config) { c.Provider.AllowedModels = nil }},
		{"default model not allowed", func(c *Config) { c.Provider.DefaultModel = "gpt-9" }},
		{"temperature out of range", func(c *Config) { c.Provider.Temperature = 3.0 }},
		{"unknown theme", func(c *Config) { c.UI.Theme = "solarized" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestModelAllowed(t *testing.T) {
	cfg := Default()

	if !cfg.ModelAllowed("gpt-4o") {
		t.Error("ModelAllowed(gpt-4o) = false, want true")
	}
	if cfg.ModelAllowed("llama3") {
		t.Error("ModelAllowed(llama3) = true, want false")
	}
}

func TestArchivePathExplicit(t *testing.T) {
	cfg := Default()
	cfg.Archive.Path = "/tmp/custom.db"

	path, err := cfg.ArchivePath()
	if err != nil {
		t.Fatal(err)
	}
	if path != "/tmp/custom.db" {
		t.Errorf("ArchivePath() = %q, want /tmp/custom.db", path)
	}
}

func TestAddr(t *testing.T) {
	cfg := Default()
	if got := cfg.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q, want 127.0.0.1:8080", got)
	}
}
