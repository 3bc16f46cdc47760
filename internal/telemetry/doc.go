// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records per-generation usage to a local SQLite
// database: token counts, durations, time to first chunk, stops and
// errors. Everything stays on disk next to the rest of the app data;
// nothing leaves the machine.
//
// A nil *Recorder drops all records, so telemetry can be switched off by
// simply not opening one.
package telemetry
