// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package preset

import (
	"context"
	"fmt"

	"github.com/arcum42/sagechat/internal/config"
	"github.com/arcum42/sagechat/internal/provider"
)

// =============================================================================
// PRESET APPLICATION
// =============================================================================

// Target is the live session surface a preset applies onto. The session
// type implements it; the indirection keeps this package free of a session
// dependency.
type Target interface {
	// CurrentProvider returns the active provider.
	CurrentProvider() provider.Provider

	// SwitchProvider changes the active provider and does not return until
	// the new provider's model list has been reloaded, so a following
	// model lookup sees fresh data.
	SwitchProvider(ctx context.Context, p provider.Provider) error

	// Models returns the active provider's model ids.
	Models(ctx context.Context) ([]string, error)

	// SetModel selects the active model.
	SetModel(model string)

	// UpdateSettings applies fn to the live settings and persists them.
	UpdateSettings(fn func(*config.Settings))
}

// Apply copies a preset's provider/model/settings/template onto the target.
//
// The provider switch completes before model validation so the requested
// model is checked against the freshly loaded list. Failures along the way
// are partial: whatever fields remain valid still take effect, and each
// problem is reported as a warning rather than aborting the apply.
func (m *Manager) Apply(ctx context.Context, id string, target Target) ([]string, error) {
	p, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	var warnings []string
	providerReady := true

	if p.Provider != "" {
		want, err := provider.Parse(p.Provider)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("preset provider: %v", err))
			providerReady = false
		} else if want != target.CurrentProvider() {
			if err := target.SwitchProvider(ctx, want); err != nil {
				warnings = append(warnings, fmt.Sprintf("provider switch to %s failed: %v", want, err))
				providerReady = false
			}
		}
	}

	if p.Model != "" && providerReady {
		models, err := target.Models(ctx)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not verify model %q: %v", p.Model, err))
		} else if !contains(models, p.Model) {
			warnings = append(warnings, fmt.Sprintf("model %q not available on %s", p.Model, target.CurrentProvider()))
		} else {
			target.SetModel(p.Model)
		}
	}

	target.UpdateSettings(func(s *config.Settings) {
		if p.SystemPrompt != "" {
			s.SystemPrompt = p.SystemPrompt
		}
		if p.PromptTemplate != "" {
			s.PromptTemplate = p.PromptTemplate
		}
		p.Settings.ApplyTo(s)
	})

	return warnings, nil
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
