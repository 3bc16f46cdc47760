// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package preset

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
func boolPtr(b bool) *bool        { return &b }

// builtinPresets returns the shipped preset table. Read-only; edits become
// user overrides.
func builtinPresets() map[string]Preset {
	return map[string]Preset{
		"default": {
			ID:             "default",
			Name:           "Default chat",
			Description:    "General-purpose chat with balanced sampling",
			Category:       "general",
			PromptTemplate: "none",
			Settings: SettingsPatch{
				Temperature: floatPtr(0.7),
				TopP:        floatPtr(0.9),
			},
			IsBuiltin: true,
		},
		"image-describer": {
			ID:             "image-describer",
			Name:           "Image describer",
			Description:    "Detailed descriptions of attached images",
			Category:       "vision",
			Provider:       "ollama",
			Model:          "llava:7b",
			PromptTemplate: "describe",
			SystemPrompt:   "You describe images accurately and thoroughly.",
			Settings: SettingsPatch{
				Temperature: floatPtr(0.3),
			},
			IsBuiltin: true,
		},
		"prompt-enhancer": {
			ID:             "prompt-enhancer",
			Name:           "Prompt enhancer",
			Description:    "Expands short image-generation prompts with visual detail",
			Category:       "generation",
			PromptTemplate: "enhance",
			SystemPrompt:   "You are an expert at writing vivid image-generation prompts.",
			Settings: SettingsPatch{
				Temperature:    floatPtr(0.9),
				MaxTokens:      intPtr(512),
				IncludeHistory: boolPtr(false),
			},
			IsBuiltin: true,
		},
		"tagger": {
			ID:             "tagger",
			Name:           "Keyword tagger",
			Description:    "Comma-separated tags for attached images",
			Category:       "vision",
			PromptTemplate: "tags",
			Settings: SettingsPatch{
				Temperature:    floatPtr(0.2),
				MaxTokens:      intPtr(256),
				IncludeHistory: boolPtr(false),
			},
			IsBuiltin: true,
		},
		"precise": {
			ID:          "precise",
			Name:        "Precise answers",
			Description: "Low-temperature, deterministic-leaning responses",
			Category:    "general",
			Settings: SettingsPatch{
				Temperature:   floatPtr(0.1),
				TopK:          intPtr(20),
				TopP:          floatPtr(0.5),
				RepeatPenalty: floatPtr(1.2),
			},
			IsBuiltin: true,
		},
	}
}
