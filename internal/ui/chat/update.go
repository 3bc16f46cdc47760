// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles all incoming messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.state != stateStreaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case streamChunkMsg:
		m.streaming = msg.accumulated
		m.refreshViewport()
		return m, waitForEvent(m.notifier.events)

	case streamDoneMsg:
		m.entries = append(m.entries, entry{role: "assistant", text: msg.full})
		m.streaming = ""
		m.lastStats = formatStatsLine(msg.stats)
		m.refreshViewport()
		return m, waitForEvent(m.notifier.events)

	case streamErrMsg:
		m.streaming = ""
		m.status = m.theme.ErrorStyle.Render("error: " + msg.err.Error())
		m.refreshViewport()
		return m, waitForEvent(m.notifier.events)

	case streamStoppedMsg:
		m.streaming = ""
		m.status = m.theme.WarningStyle.Render("stopped")
		m.refreshViewport()
		return m, waitForEvent(m.notifier.events)

	case statusMsg:
		m.status = m.theme.InfoStyle.Render(msg.text)
		return m, waitForEvent(m.notifier.events)

	case warnMsg:
		m.status = m.theme.WarningStyle.Render(msg.text)
		return m, waitForEvent(m.notifier.events)

	case historyChangedMsg:
		return m, waitForEvent(m.notifier.events)

	case sendFinishedMsg:
		// Terminal outcomes were already rendered from the stream events;
		// this just flips the view back to input.
		m.state = stateReady
		m.input.Focus()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Stop):
		if m.state == stateStreaming {
			m.orch.Stop()
		}
		return m, nil

	case key.Matches(msg, m.keys.NewConvo):
		if m.state == stateReady {
			m.orch.NewConversation()
			m.entries = nil
			m.streaming = ""
			m.status = ""
			m.lastStats = ""
			m.refreshViewport()
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Send):
		if m.state != stateReady {
			return m, nil
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.entries = append(m.entries, entry{role: "user", text: text})
		m.input.Reset()
		m.status = ""
		m.lastStats = ""
		m.state = stateStreaming
		m.refreshViewport()
		return m, tea.Batch(m.sendCmd(text), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	chromeHeight := 5 // header + input box + status bar
	vpHeight := height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = newViewport(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.input.Width = width - 6
	m.refreshViewport()
}
