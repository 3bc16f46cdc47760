// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - full-screen TUI command handler (the default command).
package cli

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/arcum42/sagechat/internal/ui/chat"
	"github.com/arcum42/sagechat/internal/ui/styles"
)

// HandleTUI launches the full-screen chat interface.
func HandleTUI(args Args) {
	app, err := buildApp(args)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	theme := styles.NewTheme(app.Cfg.UI.Theme)

	orch := app.Orchestrator(nil)
	model := chat.New(orch, theme)
	orch.SetNotifier(model.Notifier())

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fatal(err)
	}
}
