// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleConversation() Conversation {
	return Conversation{
		ID:        "c1",
		Title:     "Sample chat",
		CreatedAt: 1700000000000,
		UpdatedAt: 1700000060000,
		Provider:  "ollama",
		Model:     "llama3.2:3b",
		Messages: []Message{
			{ID: "m1", Role: RoleUser, Content: "What is Go?", Timestamp: 1700000000000},
			{ID: "m2", Role: RoleAssistant, Content: "A programming language.", Timestamp: 1700000030000},
		},
	}
}

func TestExportJSON(t *testing.T) {
	out, err := ExportJSON(sampleConversation())
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	var back Conversation
	if err := json.Unmarshal([]byte(out), &back); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if back.ID != "c1" || len(back.Messages) != 2 {
		t.Errorf("round trip = %+v", back)
	}
}

func TestExportText(t *testing.T) {
	out := ExportText(sampleConversation())

	for _, want := range []string{
		"Sample chat",
		"User: What is Go?",
		"Assistant: A programming language.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text export missing %q:\n%s", want, out)
		}
	}
}

func TestExportMarkdown(t *testing.T) {
	out := ExportMarkdown(sampleConversation())

	for _, want := range []string{
		"# Sample chat",
		"**Model:** ollama / llama3.2:3b",
		"## User",
		"## Assistant",
		"A programming language.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown export missing %q:\n%s", want, out)
		}
	}
}
