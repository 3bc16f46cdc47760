// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAppendCreatesConversation(t *testing.T) {
	s := NewStore(t.TempDir())

	conv, err := s.Append("", RoleUser, "Hello there", Metadata{Provider: "ollama", Model: "llama3.2:3b"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if conv.ID == "" {
		t.Error("conversation id not assigned")
	}
	if conv.Title != "Hello there" {
		t.Errorf("title = %q", conv.Title)
	}
	if len(conv.Messages) != 1 {
		t.Fatalf("got %d messages", len(conv.Messages))
	}
	if conv.Messages[0].Role != RoleUser || conv.Messages[0].Content != "Hello there" {
		t.Errorf("message = %+v", conv.Messages[0])
	}
	if conv.Messages[0].Timestamp == 0 {
		t.Error("message timestamp not set")
	}
	if conv.Provider != "ollama" || conv.Model != "llama3.2:3b" {
		t.Errorf("metadata = %q/%q", conv.Provider, conv.Model)
	}
}

func TestTitleDerivation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			"47 chars kept verbatim",
			"Describe this landscape photo in detail please",
			"Describe this landscape photo in detail please",
		},
		{
			"70 chars truncated to 50 plus ellipsis",
			strings.Repeat("a", 70),
			strings.Repeat("a", 50) + "...",
		},
		{
			"exactly 50 kept verbatim",
			strings.Repeat("b", 50),
			strings.Repeat("b", 50),
		},
		{
			"first line only",
			"short title\nand a much longer second line that is ignored entirely",
			"short title",
		},
		{
			"blank content",
			"   \n",
			"New conversation",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore(t.TempDir())
			conv, err := s.Append("", RoleUser, tc.content, Metadata{})
			if err != nil {
				t.Fatalf("Append failed: %v", err)
			}
			if conv.Title != tc.want {
				t.Errorf("title = %q, want %q", conv.Title, tc.want)
			}
		})
	}
}

func TestAppendUnknownIDFails(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Append("no-such-id", RoleUser, "hello", Metadata{})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("err = %v, want ErrConversationNotFound", err)
	}
	if len(s.List()) != 0 {
		t.Error("failed append must not create a conversation")
	}
}

func TestListOrderedByUpdated(t *testing.T) {
	s := NewStore(t.TempDir())

	first, _ := s.Append("", RoleUser, "first", Metadata{})
	second, _ := s.Append("", RoleUser, "second", Metadata{})

	// Touch the first so it becomes most recent. Timestamps have
	// millisecond resolution, so step past the creation instant.
	time.Sleep(2 * time.Millisecond)
	if _, err := s.Append(first.ID, RoleAssistant, "reply", Metadata{}); err != nil {
		t.Fatal(err)
	}

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("got %d conversations", len(list))
	}
	if list[0].ID != first.ID {
		t.Errorf("most recent = %s, want %s", list[0].ID, first.ID)
	}
	if list[1].ID != second.ID {
		t.Errorf("older = %s, want %s", list[1].ID, second.ID)
	}
}

func TestDeleteAndClearAll(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	conv, _ := s.Append("", RoleUser, "doomed", Metadata{})
	keep, _ := s.Append("", RoleUser, "kept", Metadata{})

	if err := s.Delete(conv.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Error("deleted conversation still retrievable")
	}
	if _, err := os.Stat(filepath.Join(dir, conv.ID+".json")); !os.IsNotExist(err) {
		t.Error("conversation file not removed")
	}
	if err := s.Delete(conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Error("double delete should report not found")
	}

	s.ClearAll()
	if len(s.List()) != 0 {
		t.Error("ClearAll left conversations")
	}
	if _, err := os.Stat(filepath.Join(dir, keep.ID+".json")); !os.IsNotExist(err) {
		t.Error("ClearAll left files")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := NewStore(dir)
	conv, _ := s.Append("", RoleUser, "persisted?", Metadata{Model: "m"})
	s.Append(conv.ID, RoleAssistant, "yes", Metadata{})

	// Fresh store over the same directory.
	reopened := NewStore(dir)
	got, err := reopened.Get(conv.ID)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Errorf("got %d messages after reopen", len(got.Messages))
	}
	if got.Title != "persisted?" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestCorruptFileSkippedOnLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(dir)
	if len(s.List()) != 0 {
		t.Error("corrupt file should be skipped")
	}

	// Store remains usable.
	if _, err := s.Append("", RoleUser, "still works", Metadata{}); err != nil {
		t.Errorf("Append after corrupt load failed: %v", err)
	}
}

func TestSearch(t *testing.T) {
	s := NewStore(t.TempDir())

	a, _ := s.Append("", RoleUser, "How do goroutines work?", Metadata{})
	s.Append(a.ID, RoleAssistant, "They are lightweight threads.", Metadata{})
	s.Append("", RoleUser, "Recipe for pancakes", Metadata{})

	if got := s.Search("goroutines"); len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("title search = %v", got)
	}
	if got := s.Search("LIGHTWEIGHT"); len(got) != 1 {
		t.Errorf("content search found %d", len(got))
	}
	if got := s.Search("quantum"); len(got) != 0 {
		t.Errorf("no-match search found %d", len(got))
	}
	if got := s.Search(""); len(got) != 2 {
		t.Errorf("empty query should list all, got %d", len(got))
	}
}

func TestImport(t *testing.T) {
	s := NewStore(t.TempDir())

	blob := `{"id":"ext-1","title":"Imported","messages":[{"id":"m1","role":"user","content":"hi","timestamp":1}]}`
	conv, err := s.Import([]byte(blob), false)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if conv.ID != "ext-1" || len(conv.Messages) != 1 {
		t.Errorf("imported = %+v", conv)
	}

	// Collision without overwrite is rejected.
	if _, err := s.Import([]byte(blob), false); !errors.Is(err, ErrConversationExists) {
		t.Errorf("collision err = %v", err)
	}
	// Overwrite replaces.
	if _, err := s.Import([]byte(blob), true); err != nil {
		t.Errorf("overwrite import failed: %v", err)
	}

	// Shape validation.
	for _, bad := range []string{
		`not json`,
		`{"title":"no id","messages":[]}`,
		`{"id":"no-messages"}`,
	} {
		if _, err := s.Import([]byte(bad), false); !errors.Is(err, ErrInvalidImport) {
			t.Errorf("Import(%q) err = %v, want ErrInvalidImport", bad, err)
		}
	}
}

func TestListReturnsCopies(t *testing.T) {
	s := NewStore(t.TempDir())
	conv, _ := s.Append("", RoleUser, "original", Metadata{})

	list := s.List()
	list[0].Messages[0].Content = "mutated"

	got, _ := s.Get(conv.ID)
	if got.Messages[0].Content != "original" {
		t.Error("store state mutated through List result")
	}
}
