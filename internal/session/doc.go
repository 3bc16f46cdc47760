// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session is the chat session orchestrator. It owns the active
// provider, model, conversation, staged image attachments and modifier
// toggles, and runs one generation at a time:
//
//	orch := session.New(cfg, registry, settings, hist, catalog, recorder, notifier)
//	err := orch.Send(ctx, "describe this scene")
//
// Send validates the input, assembles the wire prompt (template, enabled
// modifiers, optional history window), records the raw user text to the
// conversation, streams the response and commits the assistant turn. It
// blocks until the stream terminates; front-ends run it on their own
// goroutine and receive progress through the Notifier. A second Send while
// one is in flight returns ErrBusy without side effects. Stop cancels the
// live stream; the partial output is discarded.
package session
