// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for sagechat.
//
// Two distinct records live here:
//
//   - Config: the application configuration (backend URLs, data directory,
//     HTTP listen address, UI options) loaded from TOML or JSON.
//   - Settings: the flat generation-parameter record (temperature, sampling
//     parameters per provider, prompt template, history window) persisted by
//     SettingsStore and shared by every front-end.
//
// # Configuration Precedence
//
// Config is loaded from (in order of precedence):
//   - Environment variables (SAGECHAT_*)
//   - ~/.sagechat/config.toml
//   - ~/.sagechat/config.json
//   - Built-in defaults
//
// Settings loads merge the persisted JSON over DefaultSettings field by
// field; a corrupt or missing file yields pure defaults and never fails.
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
// Open the settings store:
//
//	store := config.NewSettingsStore(filepath.Join(dataDir, "settings.json"))
//	settings := store.Load()
//
// There is no package-level singleton: callers own their Config and
// SettingsStore instances and pass them down explicitly.
package config
