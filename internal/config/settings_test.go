// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSettingsLoadMissingFile(t *testing.T) {
	store := NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))

	got := store.Load()
	want := DefaultSettings()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load on missing file = %+v, want defaults %+v", got, want)
	}
}

func TestSettingsLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	store := NewSettingsStore(path)
	got := store.Load()
	if !reflect.DeepEqual(got, DefaultSettings()) {
		t.Errorf("Load on corrupt file should return defaults, got %+v", got)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewSettingsStore(path)

	saved := DefaultSettings()
	saved.Temperature = 1.2
	saved.MaxTokens = 4096
	saved.OllamaTopK = 64
	saved.LMStudioMinP = 0.1
	saved.SystemPrompt = "You are terse."
	saved.IncludeHistory = false
	saved.MaxHistoryMessages = 3
	store.Save(saved)

	// Fresh store against the same file.
	got := NewSettingsStore(path).Load()
	if !reflect.DeepEqual(got, saved) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, saved)
	}
}

func TestSettingsPartialFileBackfillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	// Only two keys persisted, as an older version might have written.
	if err := os.WriteFile(path, []byte(`{"temperature": 0.2, "ollama_top_k": 80}`), 0600); err != nil {
		t.Fatal(err)
	}

	got := NewSettingsStore(path).Load()
	if got.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", got.Temperature)
	}
	if got.OllamaTopK != 80 {
		t.Errorf("OllamaTopK = %v, want 80", got.OllamaTopK)
	}

	defaults := DefaultSettings()
	if got.MaxTokens != defaults.MaxTokens {
		t.Errorf("MaxTokens = %v, want default %v", got.MaxTokens, defaults.MaxTokens)
	}
	if got.LMStudioMinP != defaults.LMStudioMinP {
		t.Errorf("LMStudioMinP = %v, want default %v", got.LMStudioMinP, defaults.LMStudioMinP)
	}
	if got.IncludeHistory != defaults.IncludeHistory {
		t.Errorf("IncludeHistory = %v, want default %v", got.IncludeHistory, defaults.IncludeHistory)
	}
}

func TestSettingsReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewSettingsStore(path)

	changed := DefaultSettings()
	changed.Temperature = 1.9
	store.Save(changed)

	got := store.Reset()
	if !reflect.DeepEqual(got, DefaultSettings()) {
		t.Errorf("Reset returned %+v, want defaults", got)
	}

	// Reset persists: a fresh load sees defaults.
	reloaded := NewSettingsStore(path).Load()
	if !reflect.DeepEqual(reloaded, DefaultSettings()) {
		t.Errorf("reload after Reset = %+v, want defaults", reloaded)
	}
}

func TestSettingsSaveUnwritablePathKeepsMemory(t *testing.T) {
	// A directory path can never be written as a file; Save must still
	// update the in-memory value.
	store := NewSettingsStore(t.TempDir())

	changed := DefaultSettings()
	changed.MaxTokens = 99
	store.Save(changed)

	if got := store.Current(); got.MaxTokens != 99 {
		t.Errorf("Current().MaxTokens = %d, want 99", got.MaxTokens)
	}
}
