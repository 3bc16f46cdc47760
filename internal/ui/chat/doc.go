// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat view: a scrolling transcript
// viewport with glamour-rendered assistant markdown, a single-line input,
// a spinner while generating and a status bar with stream statistics.
//
// The view drives a session.Orchestrator. Sends run off the UI loop;
// progress events arrive through a channel-bridging Notifier so the
// transcript grows as chunks stream in. Esc stops the in-flight
// generation, ctrl+n starts a fresh conversation.
package chat
