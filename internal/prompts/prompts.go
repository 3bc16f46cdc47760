// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompts holds the prompt template and modifier catalog.
//
// Templates ("base") wrap the user's text into a task framing; modifiers
// ("extra") are named boolean toggles that contribute a fixed text block
// each. Built-ins ship with the binary; an overlay file in the data dir
// (TOML or JSON, by extension) can add or replace entries.
package prompts

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CATALOG TYPES
// =============================================================================

// Template is one prompt template.
type Template struct {
	Category string `toml:"category" json:"category"`
	Name     string `toml:"name" json:"name"`
	// Prompt is the template body. A literal "{prompt}" marks where the
	// user's text goes; without the marker the body is prepended.
	Prompt string `toml:"prompt" json:"prompt"`
}

// Modifier is one toggleable prompt addition.
type Modifier struct {
	Type    string `toml:"type" json:"type"`
	Name    string `toml:"name" json:"name"`
	Prompt  string `toml:"prompt" json:"prompt"`
	Default bool   `toml:"default" json:"default"`
}

// Catalog is the merged template/modifier catalog.
type Catalog struct {
	Base  map[string]Template `toml:"base" json:"base"`
	Extra map[string]Modifier `toml:"extra" json:"extra"`
}

// placeholder marks the insertion point inside a template body.
const placeholder = "{prompt}"

// =============================================================================
// BUILT-IN CATALOG
// =============================================================================

// Builtin returns the shipped catalog.
func Builtin() Catalog {
	return Catalog{
		Base: map[string]Template{
			"none": {
				Category: "general",
				Name:     "No template",
				Prompt:   placeholder,
			},
			"describe": {
				Category: "vision",
				Name:     "Describe image",
				Prompt:   "Describe the attached image in detail.\n\n" + placeholder,
			},
			"caption": {
				Category: "vision",
				Name:     "Short caption",
				Prompt:   "Write a one-sentence caption for the attached image. " + placeholder,
			},
			"tags": {
				Category: "vision",
				Name:     "Keyword tags",
				Prompt:   "List comma-separated keyword tags for the attached image.\n\n" + placeholder,
			},
			"enhance": {
				Category: "generation",
				Name:     "Enhance prompt",
				Prompt:   "Rewrite the following image-generation prompt with richer visual detail, keeping the subject unchanged:\n\n" + placeholder,
			},
			"explain": {
				Category: "general",
				Name:     "Explain",
				Prompt:   "Explain the following clearly and concisely:\n\n" + placeholder,
			},
		},
		Extra: map[string]Modifier{
			"concise": {
				Type:    "style",
				Name:    "Be concise",
				Prompt:  "Keep the answer short and to the point.",
				Default: false,
			},
			"detailed": {
				Type:    "style",
				Name:    "Be detailed",
				Prompt:  "Provide a thorough, detailed answer.",
				Default: false,
			},
			"plain": {
				Type:    "format",
				Name:    "Plain text",
				Prompt:  "Answer in plain text without markdown formatting.",
				Default: false,
			},
			"nsfw_filter": {
				Type:    "safety",
				Name:    "Family friendly",
				Prompt:  "Keep the answer suitable for all audiences.",
				Default: false,
			},
		},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load returns the built-in catalog merged with an optional overlay file.
// The overlay format follows the extension: ".json" parses as JSON, anything
// else as TOML. A missing overlay file is normal; a corrupt one logs and is
// ignored.
func Load(overlayPath string) Catalog {
	catalog := Builtin()
	if overlayPath == "" {
		return catalog
	}

	if _, err := os.Stat(overlayPath); err != nil {
		return catalog
	}

	var overlay Catalog
	var err error
	if strings.EqualFold(filepath.Ext(overlayPath), ".json") {
		var data []byte
		if data, err = os.ReadFile(overlayPath); err == nil {
			err = json.Unmarshal(data, &overlay)
		}
	} else {
		_, err = toml.DecodeFile(overlayPath, &overlay)
	}
	if err != nil {
		log.Printf("prompts: overlay %s failed to parse: %v, using built-ins", overlayPath, err)
		return catalog
	}

	for key, tpl := range overlay.Base {
		catalog.Base[key] = tpl
	}
	for key, mod := range overlay.Extra {
		catalog.Extra[key] = mod
	}
	return catalog
}

// =============================================================================
// LOOKUP AND RENDERING
// =============================================================================

// Template looks up a template by key.
func (c Catalog) Template(key string) (Template, bool) {
	tpl, ok := c.Base[key]
	return tpl, ok
}

// Modifier looks up a modifier by key.
func (c Catalog) Modifier(key string) (Modifier, bool) {
	mod, ok := c.Extra[key]
	return mod, ok
}

// TemplateKeys returns the template keys in sorted order.
func (c Catalog) TemplateKeys() []string {
	keys := make([]string, 0, len(c.Base))
	for key := range c.Base {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ModifierKeys returns the modifier keys in sorted order.
func (c Catalog) ModifierKeys() []string {
	keys := make([]string, 0, len(c.Extra))
	for key := range c.Extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Render applies the template under key to the user's text. An unknown or
// empty key returns the text unchanged. Templates without the placeholder
// are prepended, separated by a blank line.
func (c Catalog) Render(key, text string) string {
	tpl, ok := c.Base[key]
	if !ok || tpl.Prompt == "" {
		return text
	}
	if strings.Contains(tpl.Prompt, placeholder) {
		return strings.ReplaceAll(tpl.Prompt, placeholder, text)
	}
	return tpl.Prompt + "\n\n" + text
}
