// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package preset

import (
	"encoding/json"
	"log"
	"os"
	"sync"

	"github.com/arcum42/sagechat/internal/config"
	"github.com/arcum42/sagechat/internal/util"
)

// =============================================================================
// TYPES
// =============================================================================

// Preset is a named bundle of provider/model/settings/template selections.
type Preset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`

	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	PromptTemplate string `json:"prompt_template,omitempty"`
	SystemPrompt   string `json:"system_prompt,omitempty"`

	Settings SettingsPatch `json:"settings,omitempty"`

	// IsBuiltin marks shipped presets in the merged view. Built-in
	// definitions are never mutated; editing one writes a user override
	// under the same id.
	IsBuiltin bool `json:"is_builtin"`
}

// SettingsPatch is the subset of generation settings a preset may carry.
// Nil fields are left untouched on apply.
type SettingsPatch struct {
	Temperature        *float64 `json:"temperature,omitempty"`
	Seed               *int     `json:"seed,omitempty"`
	MaxTokens          *int     `json:"max_tokens,omitempty"`
	KeepAlive          *string  `json:"keep_alive,omitempty"`
	TopK               *int     `json:"top_k,omitempty"`
	TopP               *float64 `json:"top_p,omitempty"`
	RepeatPenalty      *float64 `json:"repeat_penalty,omitempty"`
	MinP               *float64 `json:"min_p,omitempty"`
	IncludeHistory     *bool    `json:"include_history,omitempty"`
	MaxHistoryMessages *int     `json:"max_history_messages,omitempty"`
}

// ApplyTo copies the non-nil patch fields into s. Sampling values land on
// both providers' fields since the patch is provider-neutral.
func (p SettingsPatch) ApplyTo(s *config.Settings) {
	if p.Temperature != nil {
		s.Temperature = *p.Temperature
	}
	if p.Seed != nil {
		s.Seed = *p.Seed
	}
	if p.MaxTokens != nil {
		s.MaxTokens = *p.MaxTokens
	}
	if p.KeepAlive != nil {
		s.KeepAlive = *p.KeepAlive
	}
	if p.TopK != nil {
		s.OllamaTopK = *p.TopK
		s.LMStudioTopK = *p.TopK
	}
	if p.TopP != nil {
		s.OllamaTopP = *p.TopP
		s.LMStudioTopP = *p.TopP
	}
	if p.RepeatPenalty != nil {
		s.OllamaRepeatPenalty = *p.RepeatPenalty
		s.LMStudioRepeatPenalty = *p.RepeatPenalty
	}
	if p.MinP != nil {
		s.LMStudioMinP = *p.MinP
	}
	if p.IncludeHistory != nil {
		s.IncludeHistory = *p.IncludeHistory
	}
	if p.MaxHistoryMessages != nil {
		s.MaxHistoryMessages = *p.MaxHistoryMessages
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// PresetError represents a preset-manager error.
type PresetError struct {
	Message string
}

func (e *PresetError) Error() string {
	return e.Message
}

// Is implements errors.Is support.
func (e *PresetError) Is(target error) bool {
	t, ok := target.(*PresetError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrPresetNotFound is returned for an unknown preset id.
	ErrPresetNotFound = &PresetError{Message: "preset not found"}

	// ErrBuiltinPreset is returned when deleting a built-in that has no
	// override; built-ins cannot be removed.
	ErrBuiltinPreset = &PresetError{Message: "cannot delete a built-in preset"}
)

// =============================================================================
// MANAGER
// =============================================================================

// Manager layers user presets and overrides over the built-in table.
// Exactly one effective record is visible per id: a user record shadows the
// built-in of the same id; deleting the user record reveals the built-in
// again.
//
// Thread-safe for concurrent use.
type Manager struct {
	path string

	mu       sync.RWMutex
	builtins map[string]Preset
	user     map[string]Preset
}

// NewManager opens a manager persisting user records to the given file.
// A corrupt file logs and starts with built-ins only.
func NewManager(path string) *Manager {
	m := &Manager{
		path:     path,
		builtins: builtinPresets(),
		user:     make(map[string]Preset),
	}
	m.loadUser()
	return m
}

func (m *Manager) loadUser() {
	if m.path == "" {
		return
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("preset: read %s failed: %v, using built-ins only", m.path, err)
		}
		return
	}
	if err := json.Unmarshal(data, &m.user); err != nil {
		log.Printf("preset: parse %s failed: %v, using built-ins only", m.path, err)
		m.user = make(map[string]Preset)
	}
}

// persist writes the user records. Best-effort, failures logged.
func (m *Manager) persist() {
	if m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m.user, "", "  ")
	if err != nil {
		log.Printf("preset: encode failed: %v", err)
		return
	}
	if err := util.AtomicWriteFile(m.path, data, 0644); err != nil {
		log.Printf("preset: write %s failed: %v", m.path, err)
	}
}

// List returns the merged view keyed by id.
func (m *Manager) List() map[string]Preset {
	m.mu.RLock()
	defer m.mu.RUnlock()

	merged := make(map[string]Preset, len(m.builtins)+len(m.user))
	for id, p := range m.builtins {
		merged[id] = p
	}
	for id, p := range m.user {
		merged[id] = p
	}
	return merged
}

// Get returns the effective preset for an id.
func (m *Manager) Get(id string) (Preset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.user[id]; ok {
		return p, nil
	}
	if p, ok := m.builtins[id]; ok {
		return p, nil
	}
	return Preset{}, ErrPresetNotFound
}

// IsOverride reports whether a user record shadows a built-in of this id.
func (m *Manager) IsOverride(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, isUser := m.user[id]
	_, isBuiltin := m.builtins[id]
	return isUser && isBuiltin
}

// Save stores a preset under id. Saving over a built-in id writes an
// override; the built-in definition itself is never touched.
func (m *Manager) Save(id string, p Preset) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = id
	p.IsBuiltin = false
	m.user[id] = p
	m.persist()
}

// Delete removes the user record for id. For an override this reverts to
// the built-in; for a plain user preset it is permanent; for a built-in
// with no override it is an error.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.user[id]; ok {
		delete(m.user, id)
		m.persist()
		return nil
	}
	if _, ok := m.builtins[id]; ok {
		return ErrBuiltinPreset
	}
	return ErrPresetNotFound
}
