// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the sagechat command-line interface.
//
// Commands are parsed from os.Args by Parse and dispatched by main. Each
// handler builds its own App (configuration plus the local stores) so
// one-shot commands like "sessions list" never touch the providers, and
// interactive commands (the TUI, the REPL, the server) own their full
// lifecycle including signal handling.
package cli
