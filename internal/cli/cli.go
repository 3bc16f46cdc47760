// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - argument parsing and command dispatch for sagechat.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdServe
	CmdSessions
	CmdModels
	CmdPresets
	CmdConfig
	CmdStats
	CmdVersion
	CmdHelp
)

// Args holds parsed command arguments and global flags.
type Args struct {
	// Raw is everything after the command word.
	Raw []string

	// Provider overrides the configured default provider.
	Provider string

	// Model overrides the configured default model.
	Model string

	// ConfigPath overrides the config file location.
	ConfigPath string
}

// Parse reads os.Args and returns the command to run.
func Parse() (Command, Args) {
	return parseArgs(os.Args[1:])
}

func parseArgs(argv []string) (Command, Args) {
	var args Args
	remaining := parseGlobalFlags(argv, &args)

	if len(remaining) == 0 {
		return CmdTUI, args
	}

	cmd := strings.ToLower(remaining[0])
	args.Raw = remaining[1:]

	switch cmd {
	case "tui":
		return CmdTUI, args
	case "chat", "plain":
		return CmdChat, args
	case "serve", "server":
		return CmdServe, args
	case "session", "sessions":
		return CmdSessions, args
	case "model", "models":
		return CmdModels, args
	case "preset", "presets":
		return CmdPresets, args
	case "config":
		return CmdConfig, args
	case "stats":
		return CmdStats, args
	case "version", "-v", "--version":
		return CmdVersion, args
	case "help", "-h", "--help":
		return CmdHelp, args
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		return CmdHelp, args
	}
}

func parseGlobalFlags(argv []string, args *Args) []string {
	var remaining []string
	for i := 0; i < len(argv); i++ {
		switch argv[i] {
		case "--provider", "-p":
			if i+1 < len(argv) {
				i++
				args.Provider = argv[i]
			}
		case "--model", "-m":
			if i+1 < len(argv) {
				i++
				args.Model = argv[i]
			}
		case "--config":
			if i+1 < len(argv) {
				i++
				args.ConfigPath = argv[i]
			}
		default:
			remaining = append(remaining, argv[i])
		}
	}
	return remaining
}

// Usage prints command help.
func Usage() {
	fmt.Print(`sagechat - local LLM chat for Ollama and LM Studio

Usage:
  sagechat                          Launch the TUI (default)
  sagechat chat                     Plain-terminal REPL chat
  sagechat serve                    Run the HTTP API server
  sagechat sessions list            List saved conversations
  sagechat sessions show <id>       Print a conversation
  sagechat sessions export <id> [--format json|text|markdown]
  sagechat sessions import <file> [--overwrite]
  sagechat sessions search <query>  Search conversations
  sagechat sessions delete <id>     Delete a conversation
  sagechat sessions clear           Delete all conversations
  sagechat models [--vision]        List available models
  sagechat presets [list|show <id>|delete <id>]
  sagechat config get <key>         Read a config value (dot notation)
  sagechat config set <key> <value> Write a config value
  sagechat stats                    Show usage statistics
  sagechat version                  Show version information

Global flags:
  -p, --provider <ollama|lmstudio>  Override the default provider
  -m, --model <id>                  Override the default model
      --config <path>               Use an alternate config file
`)
}

// PrintVersion prints build information.
func PrintVersion() {
	fmt.Printf("sagechat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
