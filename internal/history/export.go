// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"encoding/json"
	"strings"
	"time"
)

// =============================================================================
// EXPORT FORMATTING
// =============================================================================

// Pure formatting, no store side effects.

// ExportJSON renders a conversation as indented JSON.
func ExportJSON(conv Conversation) (string, error) {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ExportText renders a conversation as plain text, one "Role: content" block
// per message.
func ExportText(conv Conversation) string {
	var b strings.Builder

	b.WriteString(conv.Title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len(conv.Title)))
	b.WriteString("\n\n")

	for _, msg := range conv.Messages {
		b.WriteString(roleLabel(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}

	return b.String()
}

// ExportMarkdown renders a conversation as a Markdown document with one
// section per message.
func ExportMarkdown(conv Conversation) string {
	var b strings.Builder

	b.WriteString("# ")
	b.WriteString(conv.Title)
	b.WriteString("\n\n")

	if conv.Model != "" {
		b.WriteString("**Model:** ")
		if conv.Provider != "" {
			b.WriteString(conv.Provider)
			b.WriteString(" / ")
		}
		b.WriteString(conv.Model)
		b.WriteString("\n\n")
	}
	if conv.CreatedAt > 0 {
		b.WriteString("**Created:** ")
		b.WriteString(time.UnixMilli(conv.CreatedAt).Format("2006-01-02 15:04"))
		b.WriteString("\n\n")
	}

	for _, msg := range conv.Messages {
		b.WriteString("## ")
		b.WriteString(roleLabel(msg.Role))
		b.WriteString("\n\n")
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}

	return b.String()
}

func roleLabel(role string) string {
	switch role {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		if role == "" {
			return "Unknown"
		}
		return strings.ToUpper(role[:1]) + role[1:]
	}
}
