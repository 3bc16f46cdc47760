// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - shared wiring for CLI command handlers.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/arcum42/sagechat/internal/config"
	"github.com/arcum42/sagechat/internal/history"
	"github.com/arcum42/sagechat/internal/preset"
	"github.com/arcum42/sagechat/internal/prompts"
	"github.com/arcum42/sagechat/internal/provider"
	"github.com/arcum42/sagechat/internal/session"
	"github.com/arcum42/sagechat/internal/telemetry"
)

// App bundles the long-lived components a command needs. Build one per
// process with buildApp and Close it on the way out.
type App struct {
	Cfg      *config.Config
	Registry *provider.Registry
	Settings *config.SettingsStore
	History  *history.Store
	Catalog  prompts.Catalog
	Presets  *preset.Manager
	Recorder *telemetry.Recorder
}

// buildApp loads configuration, applies command-line overrides and opens
// the local stores under the data directory.
func buildApp(args Args) (*App, error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return nil, err
	}

	if args.Provider != "" {
		cfg.DefaultProvider = args.Provider
	}
	if args.Model != "" {
		cfg.DefaultModel = args.Model
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}

	app := &App{
		Cfg:      cfg,
		Registry: provider.NewRegistry(cfg),
		Settings: config.NewSettingsStore(filepath.Join(dataDir, "settings.json")),
		History:  history.NewStore(filepath.Join(dataDir, "conversations")),
		Catalog:  prompts.Load(filepath.Join(dataDir, "prompts.json")),
		Presets:  preset.NewManager(filepath.Join(dataDir, "presets.json")),
	}

	if cfg.Generation.TelemetryEnabled {
		rec, err := telemetry.Open(filepath.Join(dataDir, "telemetry.db"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: telemetry disabled: %v\n", err)
		} else {
			app.Recorder = rec
		}
	}

	return app, nil
}

func loadConfig(args Args) (*config.Config, error) {
	if args.ConfigPath != "" {
		return config.LoadFromPath(args.ConfigPath)
	}

	cfg, err := config.Load()
	if cfg == nil {
		return nil, err
	}
	if err != nil {
		// The config file was unreadable; defaults are in effect.
		fmt.Fprintf(os.Stderr, "warning: %v (using defaults)\n", err)
	}
	return cfg, nil
}

// Orchestrator builds a session orchestrator over the app's components.
func (a *App) Orchestrator(notifier session.Notifier) *session.Orchestrator {
	return session.New(a.Cfg, a.Registry, a.Settings, a.History, a.Catalog, a.Recorder, notifier)
}

// Close releases resources held by the app.
func (a *App) Close() {
	if a.Recorder != nil {
		if err := a.Recorder.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing telemetry: %v\n", err)
		}
	}
}

// fatal prints an error and exits.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
