// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the sagechat TUI:
// an adaptive color palette and a Theme bundling the Lip Gloss styles the
// chat view renders with. Colors adapt to light and dark terminals; the
// configured theme mode can force either.
package styles
