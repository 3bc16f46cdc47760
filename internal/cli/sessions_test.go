// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/arcum42/sagechat/internal/history"
)

func writeExport(t *testing.T, conv history.Conversation) string {
	t.Helper()
	data, err := history.ExportJSON(conv)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportConversationRoundTrip(t *testing.T) {
	store := history.NewStore(t.TempDir())
	conv := history.Conversation{
		ID:    "imported-1",
		Title: "Carried over",
		Messages: []history.Message{
			{ID: "m1", Role: history.RoleUser, Content: "hello", Timestamp: 1700000000000},
			{ID: "m2", Role: history.RoleAssistant, Content: "hi", Timestamp: 1700000001000},
		},
	}
	path := writeExport(t, conv)

	got, err := importConversation(store, path, false)
	if err != nil {
		t.Fatalf("importConversation: %v", err)
	}
	if got.ID != "imported-1" || len(got.Messages) != 2 {
		t.Errorf("imported = %+v", got)
	}

	loaded, err := store.Get("imported-1")
	if err != nil {
		t.Fatalf("Get after import: %v", err)
	}
	if loaded.Title != "Carried over" {
		t.Errorf("Title = %q", loaded.Title)
	}
}

func TestImportConversationCollision(t *testing.T) {
	store := history.NewStore(t.TempDir())
	conv := history.Conversation{
		ID:    "dup",
		Title: "First",
		Messages: []history.Message{
			{ID: "m1", Role: history.RoleUser, Content: "one", Timestamp: 1},
		},
	}
	path := writeExport(t, conv)

	if _, err := importConversation(store, path, false); err != nil {
		t.Fatalf("first import: %v", err)
	}

	conv.Title = "Second"
	path = writeExport(t, conv)

	_, err := importConversation(store, path, false)
	if !errors.Is(err, history.ErrConversationExists) {
		t.Fatalf("collision err = %v, want ErrConversationExists", err)
	}

	got, err := importConversation(store, path, true)
	if err != nil {
		t.Fatalf("overwrite import: %v", err)
	}
	if got.Title != "Second" {
		t.Errorf("Title after overwrite = %q, want Second", got.Title)
	}
}

func TestImportConversationInvalid(t *testing.T) {
	store := history.NewStore(t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"id": ""}`), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := importConversation(store, path, false)
	if !errors.Is(err, history.ErrInvalidImport) {
		t.Fatalf("err = %v, want ErrInvalidImport", err)
	}
}

func TestImportConversationMissingFile(t *testing.T) {
	store := history.NewStore(t.TempDir())

	_, err := importConversation(store, filepath.Join(t.TempDir(), "absent.json"), false)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
