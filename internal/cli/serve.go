// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - HTTP API server command handler.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arcum42/sagechat/internal/config"
	"github.com/arcum42/sagechat/internal/server"
)

// HandleServe runs the HTTP API server until interrupted.
func HandleServe(args Args) {
	app, err := buildApp(args)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Settings edited by another front-end (or by hand) take effect on the
	// next request instead of requiring a restart.
	watcher, err := config.NewSettingsWatcher(app.Settings, 0, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: settings hot-reload disabled: %v\n", err)
	} else if err := watcher.Watch(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: settings hot-reload disabled: %v\n", err)
		watcher.Close()
	} else {
		defer watcher.Close()
	}

	srv := server.New(app.Cfg, app.Registry, app.Settings, app.Catalog, app.Presets, app.Recorder)

	fmt.Printf("sagechat API listening on http://%s\n", app.Cfg.Server.ListenAddr)
	if err := srv.ListenAndServe(ctx); err != nil {
		fatal(err)
	}
}
