// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history owns the conversation list: ordered role-tagged messages
// grouped into conversations, listed most-recently-updated first.
//
// The in-memory index is authoritative. Each conversation persists to its
// own JSON file under the store directory with atomic writes; persistence
// failures are logged and never propagate, so the session keeps working on
// memory alone when the disk misbehaves.
//
// Appending with an empty id lazily creates a conversation, titling it from
// the first line of the message (titles past 50 runes keep the first 50 and
// gain an ellipsis). Appending with an id that matches nothing is an error:
// the store never silently creates a record under a caller-supplied id.
//
// Export helpers render a conversation as JSON, plain text or Markdown
// without touching the store.
package history
