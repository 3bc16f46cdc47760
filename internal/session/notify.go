// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"github.com/arcum42/sagechat/internal/stream"
)

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// Notifier receives session events for display. Implementations are called
// from the goroutine running Send, so UI front-ends must hand events off to
// their own loop.
type Notifier interface {
	// Chunk delivers one streamed fragment and the accumulated text so far.
	Chunk(delta, accumulated string)

	// Done fires after a generation completes and the assistant message
	// has been recorded.
	Done(full string, stats stream.Stats)

	// Failed fires when a generation ends in a provider or transport error.
	Failed(err error)

	// Stopped fires when the user cancelled the generation. Partial output
	// is discarded.
	Stopped()

	// Status carries inline, non-error status messages ("enter a prompt").
	Status(msg string)

	// Warning carries non-fatal problems, like rejected image attachments.
	Warning(msg string)

	// HistoryChanged fires whenever the conversation list should refresh.
	HistoryChanged()
}

// NopNotifier discards all events. Embed it to implement only the methods
// a front-end cares about.
type NopNotifier struct{}

func (NopNotifier) Chunk(delta, accumulated string)      {}
func (NopNotifier) Done(full string, stats stream.Stats) {}
func (NopNotifier) Failed(err error)                     {}
func (NopNotifier) Stopped()                             {}
func (NopNotifier) Status(msg string)                    {}
func (NopNotifier) Warning(msg string)                   {}
func (NopNotifier) HistoryChanged()                      {}
