// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"

	"github.com/arcum42/sagechat/internal/history"
)

// =============================================================================
// PROMPT ASSEMBLY
// =============================================================================

const (
	historyOpenMarker  = "--- Previous conversation ---"
	historyCloseMarker = "--- End of previous conversation ---"
	currentMarker      = "Current message:"
)

// assemblePrompt builds the outgoing prompt: the template-rendered text,
// enabled modifier snippets appended blank-line separated, and up to
// maxHistory most-recent prior messages injected oldest-first inside
// literal markers. The stored user message never contains any of this;
// only the wire prompt does.
func assemblePrompt(text string, modifiers []string, prior []history.Message, maxHistory int) string {
	var sb strings.Builder
	sb.WriteString(text)
	for _, snippet := range modifiers {
		if snippet == "" {
			continue
		}
		sb.WriteString("\n\n")
		sb.WriteString(snippet)
	}
	current := sb.String()

	if len(prior) == 0 || maxHistory <= 0 {
		return current
	}

	window := prior
	if len(window) > maxHistory {
		window = window[len(window)-maxHistory:]
	}

	var out strings.Builder
	out.WriteString(historyOpenMarker)
	out.WriteString("\n")
	for _, msg := range window {
		out.WriteString(roleLabel(msg.Role))
		out.WriteString(": ")
		out.WriteString(msg.Content)
		out.WriteString("\n")
	}
	out.WriteString(historyCloseMarker)
	out.WriteString("\n\n")
	out.WriteString(currentMarker)
	out.WriteString("\n")
	out.WriteString(current)
	return out.String()
}

func roleLabel(role string) string {
	switch role {
	case history.RoleUser:
		return "User"
	case history.RoleAssistant:
		return "Assistant"
	default:
		return role
	}
}
