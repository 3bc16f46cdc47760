// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"log"
	"os"
	"sync"

	"github.com/arcum42/sagechat/internal/util"
)

// =============================================================================
// GENERATION SETTINGS
// =============================================================================

// Settings is the flat generation-parameter record shared by every front-end.
// Provider-specific fields carry a provider prefix; each client maps only its
// own subset onto the wire.
type Settings struct {
	Temperature float64 `json:"temperature"`
	Seed        int     `json:"seed"`
	MaxTokens   int     `json:"max_tokens"`
	KeepAlive   string  `json:"keep_alive"`

	// Ollama sampling parameters
	OllamaTopK          int     `json:"ollama_top_k"`
	OllamaTopP          float64 `json:"ollama_top_p"`
	OllamaRepeatPenalty float64 `json:"ollama_repeat_penalty"`

	// LM Studio sampling parameters
	LMStudioTopK          int     `json:"lmstudio_top_k"`
	LMStudioTopP          float64 `json:"lmstudio_top_p"`
	LMStudioRepeatPenalty float64 `json:"lmstudio_repeat_penalty"`
	LMStudioMinP          float64 `json:"lmstudio_min_p"`

	// Prompt assembly
	SystemPrompt   string `json:"system_prompt"`
	PromptTemplate string `json:"prompt_template"`

	// History injection
	IncludeHistory     bool `json:"include_history"`
	MaxHistoryMessages int  `json:"max_history_messages"`
}

// DefaultSettings returns the built-in generation settings.
// Pure function, no external dependency.
func DefaultSettings() Settings {
	return Settings{
		Temperature: 0.7,
		Seed:        0, // 0 = random per request
		MaxTokens:   1024,
		KeepAlive:   "5m",

		OllamaTopK:          40,
		OllamaTopP:          0.9,
		OllamaRepeatPenalty: 1.1,

		LMStudioTopK:          40,
		LMStudioTopP:          0.9,
		LMStudioRepeatPenalty: 1.1,
		LMStudioMinP:          0.05,

		SystemPrompt:   "",
		PromptTemplate: "none",

		IncludeHistory:     true,
		MaxHistoryMessages: 10,
	}
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

// SettingsStore persists the generation settings to a JSON file.
//
// Loads never fail: a missing or corrupt file logs a warning and yields
// defaults. Saves are best-effort atomic writes; a write failure is logged
// and the in-memory value remains authoritative for the rest of the session.
type SettingsStore struct {
	path string

	mu      sync.RWMutex
	current Settings
	loaded  bool
}

// NewSettingsStore creates a settings store backed by the given file path.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// Path returns the backing file path.
func (s *SettingsStore) Path() string {
	return s.path
}

// Load reads persisted settings merged over defaults.
// Keys missing from the persisted blob keep their default values, so a
// partial file from an older version never crashes the reader.
func (s *SettingsStore) Load() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := DefaultSettings()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("settings: read %s failed: %v, using defaults", s.path, err)
		}
		s.current = settings
		s.loaded = true
		return settings
	}

	// Unmarshal over a defaults-initialized value: absent keys keep defaults.
	if err := json.Unmarshal(data, &settings); err != nil {
		log.Printf("settings: parse %s failed: %v, using defaults", s.path, err)
		settings = DefaultSettings()
	}

	s.current = settings
	s.loaded = true
	return settings
}

// Current returns the in-memory settings, loading from disk on first use.
func (s *SettingsStore) Current() Settings {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.current
	}
	s.mu.RUnlock()
	return s.Load()
}

// Save persists the settings. Best-effort: a write failure is logged, the
// in-memory value is updated regardless.
func (s *SettingsStore) Save(settings Settings) {
	s.mu.Lock()
	s.current = settings
	s.loaded = true
	s.mu.Unlock()

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		log.Printf("settings: encode failed: %v", err)
		return
	}
	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		log.Printf("settings: write %s failed: %v", s.path, err)
	}
}

// Reset restores defaults and persists them.
func (s *SettingsStore) Reset() Settings {
	settings := DefaultSettings()
	s.Save(settings)
	return settings
}
