// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
)

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.MouseWheelEnabled = true
	return vp
}

// View renders the full chat screen.
func (m *Model) View() string {
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("sagechat")
	info := m.theme.StatusValue.Render(
		string(m.orch.CurrentProvider()) + " / " + modelOrPlaceholder(m.orch.CurrentModel()))
	return m.theme.Header.Width(m.width).Render(title + "  " + info)
}

func modelOrPlaceholder(model string) string {
	if model == "" {
		return "(no model)"
	}
	return model
}

func (m *Model) renderInput() string {
	prompt := m.theme.InputPrompt.Render("> ")
	return m.theme.InputBox.Width(m.width - 2).Render(prompt + m.input.View())
}

func (m *Model) renderStatusBar() string {
	var left string
	switch {
	case m.state == stateStreaming:
		left = m.spinner.View() + " generating... (esc to stop)"
	case m.status != "":
		left = m.status
	case m.lastStats != "":
		left = m.theme.StatsStyle.Render(m.lastStats)
	default:
		left = m.theme.StatusValue.Render("enter: send | ctrl+n: new | ctrl+c: quit")
	}
	return m.theme.StatusBar.Width(m.width).Render(truncateToWidth(left, m.width-2))
}

// truncateToWidth trims a line to the given display width, accounting for
// wide characters.
func truncateToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width-1, "…")
}

// refreshViewport re-renders the transcript and follows the tail.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) renderTranscript() string {
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		if e.role == "user" {
			b.WriteString(m.theme.UserLabel.Render("You"))
			b.WriteString("\n")
			b.WriteString(m.theme.UserText.Render(e.text))
		} else {
			b.WriteString(m.theme.AssistantLabel.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(m.renderMarkdown(e.text))
		}
		b.WriteString("\n")
	}
	if m.streaming != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.AssistantLabel.Render("Assistant"))
		b.WriteString("\n")
		// Raw text while streaming; markdown rendering waits for the
		// complete response.
		b.WriteString(m.theme.AssistantText.Render(m.streaming))
		b.WriteString("\n")
	}
	return b.String()
}

// renderMarkdown renders assistant output with glamour, falling back to
// plain text when rendering fails.
func (m *Model) renderMarkdown(text string) string {
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return m.theme.AssistantText.Render(text)
	}
	out, err := r.Render(text)
	if err != nil {
		return m.theme.AssistantText.Render(text)
	}
	return strings.TrimRight(out, "\n")
}
