// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/arcum42/sagechat/internal/session"
	"github.com/arcum42/sagechat/internal/stream"
	"github.com/arcum42/sagechat/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// viewState is the view's rendering state.
type viewState int

const (
	stateReady     viewState = iota // waiting for input
	stateStreaming                  // receiving a response
)

// entry is one rendered transcript turn.
type entry struct {
	role string // "user" or "assistant"
	text string
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	state viewState
	theme *styles.Theme

	orch     *session.Orchestrator
	notifier *uiNotifier

	// Transcript
	entries   []entry
	streaming string // accumulated text of the in-flight response

	// Feedback lines under the transcript
	status    string
	lastStats string

	// Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keys     KeyMap

	width  int
	height int
	ready  bool
}

// New creates the chat view bound to an orchestrator. The returned model's
// Notifier must be registered before the program starts; use Notifier().
func New(orch *session.Orchestrator, theme *styles.Theme) *Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Focus()
	input.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	return &Model{
		state:    stateReady,
		theme:    theme,
		orch:     orch,
		notifier: newUINotifier(),
		input:    input,
		spinner:  sp,
		keys:     DefaultKeyMap(),
	}
}

// Notifier returns the session.Notifier that feeds this view.
func (m *Model) Notifier() session.Notifier {
	return m.notifier
}

// Init starts the event drain.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitForEvent(m.notifier.events),
	)
}

// sendCmd runs the blocking send off the UI loop. Progress arrives through
// the notifier channel; the command's own message only closes the cycle.
func (m *Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return sendFinishedMsg{err: m.orch.Send(context.Background(), text)}
	}
}

func formatStatsLine(stats stream.Stats) string {
	return stats.Format()
}
