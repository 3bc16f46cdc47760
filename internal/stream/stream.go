// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind tags the variants of a stream event.
type EventKind int

const (
	// EventChunk carries one increment of generated text.
	EventChunk EventKind = iota
	// EventDone is the successful terminal event with the full text.
	EventDone
	// EventError is the failure terminal event.
	EventError
	// EventStopped is the terminal event after a caller-initiated Stop.
	// A stop is a normal termination, never reported as an error.
	EventStopped
)

// String returns the event kind name for logging.
func (k EventKind) String() string {
	switch k {
	case EventChunk:
		return "chunk"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is one tagged-union message on a session's event channel.
type Event struct {
	Kind EventKind

	// Text is the incremental chunk text (EventChunk only).
	Text string

	// Full is the accumulated text so far (EventChunk) or the complete
	// output (EventDone).
	Full string

	// Err is set for EventError.
	Err error
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// Stats holds statistics collected over one streaming generation.
type Stats struct {
	StartTime      time.Time
	FirstChunkTime time.Time
	EndTime        time.Time

	Chunks int
	Runes  int

	// Token counts as reported by the provider, when available.
	PromptTokens     int
	CompletionTokens int

	// Computed
	TTFT            time.Duration
	Duration        time.Duration
	TokensPerSecond float64
}

// Format returns a compact single-line summary for status displays.
func (s Stats) Format() string {
	var b strings.Builder
	b.WriteString(s.Duration.Round(10 * time.Millisecond).String())
	if s.CompletionTokens > 0 {
		b.WriteString(" | ")
		b.WriteString(itoa(s.CompletionTokens))
		b.WriteString(" tokens")
	}
	if s.TokensPerSecond > 0 {
		b.WriteString(" | ")
		b.WriteString(ftoa(s.TokensPerSecond))
		b.WriteString(" tok/s")
	}
	if s.TTFT > 0 {
		b.WriteString(" | TTFT ")
		b.WriteString(s.TTFT.Round(time.Millisecond).String())
	}
	return b.String()
}

// itoa formats an int without fmt.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	negative := n < 0
	if negative {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if negative {
		return "-" + string(digits)
	}
	return string(digits)
}

// ftoa formats a float with one decimal place.
func ftoa(f float64) string {
	whole := int(f)
	frac := int((f - float64(whole)) * 10)
	if frac < 0 {
		frac = -frac
	}
	return itoa(whole) + "." + itoa(frac)
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the single-use conduit for one streaming generation.
//
// One producer goroutine feeds it via Send and finishes it with exactly one
// of Done or Fail; the consumer drains Events until the channel closes.
// Exactly one terminal event is delivered per session: Done, Error, or
// Stopped. After Stop, no new chunks are accepted and the terminal event is
// Stopped regardless of how the producer finished. Chunks already buffered
// when Stop is called may still drain; consumers that treat Stop as final
// discard them.
//
// The producer must use Context for its network request so that Stop aborts
// the in-flight connection rather than leaking it.
type Session struct {
	events chan Event
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	full     strings.Builder
	stopped  bool
	terminal bool
	stats    Stats
}

// NewSession creates a session whose request context descends from parent.
func NewSession(parent context.Context) *Session {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		events: make(chan Event, 32),
		ctx:    ctx,
		cancel: cancel,
		stats:  Stats{StartTime: time.Now()},
	}
}

// Events returns the channel the consumer drains. It is closed after the
// terminal event.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Context returns the context the producer must attach to its request.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Stop requests cooperative cancellation. The in-flight request context is
// cancelled; no further chunks are delivered; the terminal event becomes
// Stopped. Safe to call from any goroutine, and more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Text returns the text accumulated so far.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.full.String()
}

// Stats returns a snapshot of the collected statistics.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// =============================================================================
// PRODUCER SIDE
// =============================================================================

// Send delivers one chunk to the consumer. Returns false when the chunk was
// dropped because the session is stopped or already terminal; the producer
// should then stop reading and finish.
func (s *Session) Send(text string) bool {
	s.mu.Lock()
	if s.terminal || s.stopped {
		s.mu.Unlock()
		return false
	}
	if s.stats.Chunks == 0 {
		s.stats.FirstChunkTime = time.Now()
		s.stats.TTFT = s.stats.FirstChunkTime.Sub(s.stats.StartTime)
	}
	s.stats.Chunks++
	s.stats.Runes += len([]rune(text))
	s.full.WriteString(text)
	full := s.full.String()
	s.mu.Unlock()

	select {
	case s.events <- Event{Kind: EventChunk, Text: text, Full: full}:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// SetUsage records provider-reported token counts, typically just before
// Done.
func (s *Session) SetUsage(promptTokens, completionTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.PromptTokens = promptTokens
	s.stats.CompletionTokens = completionTokens
}

// Done finishes the session successfully. A no-op if already terminal; yields
// Stopped instead when Stop was called first.
func (s *Session) Done() {
	s.finish(Event{Kind: EventDone, Full: s.Text()})
}

// Fail finishes the session with an error. A no-op if already terminal;
// yields Stopped instead when Stop was called first, since a read error after
// cancellation is an artifact of the abort, not a provider failure.
func (s *Session) Fail(err error) {
	s.finish(Event{Kind: EventError, Err: err})
}

// finish delivers the terminal event exactly once and closes the channel.
func (s *Session) finish(ev Event) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	if s.stopped {
		ev = Event{Kind: EventStopped}
	}
	s.stats.EndTime = time.Now()
	s.stats.Duration = s.stats.EndTime.Sub(s.stats.StartTime)
	if ev.Kind == EventDone && s.stats.CompletionTokens > 0 && s.stats.Duration > 0 {
		s.stats.TokensPerSecond = float64(s.stats.CompletionTokens) / s.stats.Duration.Seconds()
	}
	s.mu.Unlock()

	s.cancel()
	s.events <- ev
	close(s.events)
}
