// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package preset manages named provider/model/settings bundles.
//
// Built-in presets ship with the binary and are read-only. Saving under a
// built-in id writes a user override that shadows it in the merged view;
// deleting the override reveals the original built-in unchanged. Deleting a
// plain user preset is permanent, and a built-in with no override cannot be
// deleted. Exactly one effective record is visible per id.
//
// Apply drives a Target (the live session): a provider switch completes and
// the new model list is loaded before the preset's model is validated, so
// the check never races a stale dropdown. Application is partial on
// failure: valid fields still take effect and problems come back as
// warnings.
package preset
