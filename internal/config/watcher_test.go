// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSettingsWatcherReloadsOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewSettingsStore(path)
	store.Save(DefaultSettings())

	changed := make(chan Settings, 1)
	w, err := NewSettingsWatcher(store, 50*time.Millisecond, func(s Settings) {
		select {
		case changed <- s:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewSettingsWatcher: %v", err)
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// External edit: write the file directly, not through the store.
	edited := DefaultSettings()
	edited.Temperature = 0.42
	data, err := json.Marshal(edited)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-changed:
		if got.Temperature != 0.42 {
			t.Errorf("reloaded Temperature = %v, want 0.42", got.Temperature)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never fired after file change")
	}

	if got := store.Current().Temperature; got != 0.42 {
		t.Errorf("store.Current().Temperature = %v, want 0.42", got)
	}
}

func TestSettingsWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewSettingsStore(filepath.Join(dir, "settings.json"))
	store.Save(DefaultSettings())

	changed := make(chan Settings, 1)
	w, err := NewSettingsWatcher(store, 50*time.Millisecond, func(s Settings) {
		select {
		case changed <- s:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewSettingsWatcher: %v", err)
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-changed:
		t.Error("watcher fired for an unrelated file")
	case <-time.After(500 * time.Millisecond):
	}
}
