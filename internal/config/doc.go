// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for kestrel.
//
// Configuration is a single TOML file with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: top-level configuration with all settings
//   - ServerConfig: listen address, admission limits, stream timeout
//   - ProviderConfig: backend URL, credentials, model allow-list
//   - ArchiveConfig: SQLite transcript archive
//
// # Configuration Precedence
//
// Settings are resolved from (in order of precedence):
//   - Environment variables (KESTREL_API_KEY, KESTREL_BASE_URL, KESTREL_PORT)
//   - ~/.kestrel/config.toml
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	model := cfg.Provider.DefaultModel
//	addr := cfg.Addr()
package config
