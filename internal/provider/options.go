// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"github.com/arcum42/sagechat/internal/config"
)

// OptionsFromSettings slices the flat settings record into the option
// fields the given provider understands. The two backends name their
// sampling knobs differently and keep separate values, so the mapping is
// per provider.
func OptionsFromSettings(p Provider, s config.Settings) Options {
	opts := Options{
		Temperature: s.Temperature,
		Seed:        s.Seed,
		MaxTokens:   s.MaxTokens,
	}
	switch p {
	case LMStudio:
		opts.TopK = s.LMStudioTopK
		opts.TopP = s.LMStudioTopP
		opts.RepeatPenalty = s.LMStudioRepeatPenalty
		opts.MinP = s.LMStudioMinP
	default:
		opts.KeepAlive = s.KeepAlive
		opts.TopK = s.OllamaTopK
		opts.TopP = s.OllamaTopP
		opts.RepeatPenalty = s.OllamaRepeatPenalty
	}
	return opts
}
