// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/arcum42/sagechat/internal/stream"
)

// =============================================================================
// MESSAGES
// =============================================================================

// streamChunkMsg carries one streamed fragment.
type streamChunkMsg struct {
	delta       string
	accumulated string
}

// streamDoneMsg fires when a generation completes.
type streamDoneMsg struct {
	full  string
	stats stream.Stats
}

// streamErrMsg fires when a generation fails.
type streamErrMsg struct {
	err error
}

// streamStoppedMsg fires when the user cancelled a generation.
type streamStoppedMsg struct{}

// statusMsg carries an inline status line.
type statusMsg struct {
	text string
}

// warnMsg carries a non-fatal warning.
type warnMsg struct {
	text string
}

// historyChangedMsg asks the view to refresh conversation-derived chrome.
type historyChangedMsg struct{}

// sendFinishedMsg is the return value of a blocking send.
type sendFinishedMsg struct {
	err error
}

// =============================================================================
// NOTIFIER BRIDGE
// =============================================================================

// uiNotifier forwards orchestrator events onto the Bubble Tea loop through
// a channel drained by waitForEvent.
type uiNotifier struct {
	events chan tea.Msg
}

func newUINotifier() *uiNotifier {
	// Buffered so a slow redraw never stalls the stream reader.
	return &uiNotifier{events: make(chan tea.Msg, 64)}
}

func (n *uiNotifier) Chunk(delta, accumulated string) {
	n.events <- streamChunkMsg{delta: delta, accumulated: accumulated}
}

func (n *uiNotifier) Done(full string, stats stream.Stats) {
	n.events <- streamDoneMsg{full: full, stats: stats}
}

func (n *uiNotifier) Failed(err error) {
	n.events <- streamErrMsg{err: err}
}

func (n *uiNotifier) Stopped() {
	n.events <- streamStoppedMsg{}
}

func (n *uiNotifier) Status(msg string) {
	n.events <- statusMsg{text: msg}
}

func (n *uiNotifier) Warning(msg string) {
	n.events <- warnMsg{text: msg}
}

func (n *uiNotifier) HistoryChanged() {
	n.events <- historyChangedMsg{}
}

// waitForEvent re-arms the channel drain; Update issues it again after
// every delivered event.
func waitForEvent(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}
