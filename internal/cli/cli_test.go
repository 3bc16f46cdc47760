// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"reflect"
	"testing"
)

func TestParseArgsCommands(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want Command
	}{
		{"no args defaults to tui", nil, CmdTUI},
		{"explicit tui", []string{"tui"}, CmdTUI},
		{"chat", []string{"chat"}, CmdChat},
		{"plain alias", []string{"plain"}, CmdChat},
		{"serve", []string{"serve"}, CmdServe},
		{"server alias", []string{"server"}, CmdServe},
		{"sessions", []string{"sessions"}, CmdSessions},
		{"session singular", []string{"session"}, CmdSessions},
		{"models", []string{"models"}, CmdModels},
		{"presets", []string{"presets"}, CmdPresets},
		{"config", []string{"config"}, CmdConfig},
		{"stats", []string{"stats"}, CmdStats},
		{"version", []string{"version"}, CmdVersion},
		{"version flag", []string{"--version"}, CmdVersion},
		{"help", []string{"help"}, CmdHelp},
		{"mixed case", []string{"SERVE"}, CmdServe},
		{"unknown falls back to help", []string{"frobnicate"}, CmdHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := parseArgs(tt.argv)
			if got != tt.want {
				t.Errorf("parseArgs(%v) = %v, want %v", tt.argv, got, tt.want)
			}
		})
	}
}

func TestParseArgsGlobalFlags(t *testing.T) {
	cmd, args := parseArgs([]string{"--provider", "lmstudio", "-m", "qwen2:7b", "sessions", "list"})
	if cmd != CmdSessions {
		t.Fatalf("cmd = %v, want CmdSessions", cmd)
	}
	if args.Provider != "lmstudio" {
		t.Errorf("Provider = %q, want lmstudio", args.Provider)
	}
	if args.Model != "qwen2:7b" {
		t.Errorf("Model = %q, want qwen2:7b", args.Model)
	}
	if !reflect.DeepEqual(args.Raw, []string{"list"}) {
		t.Errorf("Raw = %v, want [list]", args.Raw)
	}
}

func TestParseArgsFlagsAfterCommand(t *testing.T) {
	cmd, args := parseArgs([]string{"models", "--provider", "ollama", "--vision"})
	if cmd != CmdModels {
		t.Fatalf("cmd = %v, want CmdModels", cmd)
	}
	if args.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", args.Provider)
	}
	if !reflect.DeepEqual(args.Raw, []string{"--vision"}) {
		t.Errorf("Raw = %v, want [--vision]", args.Raw)
	}
}

func TestParseArgsConfigOverride(t *testing.T) {
	_, args := parseArgs([]string{"--config", "/tmp/alt.toml", "config", "show"})
	if args.ConfigPath != "/tmp/alt.toml" {
		t.Errorf("ConfigPath = %q, want /tmp/alt.toml", args.ConfigPath)
	}
}

func TestParseArgsFlagMissingValue(t *testing.T) {
	cmd, args := parseArgs([]string{"chat", "--model"})
	if cmd != CmdChat {
		t.Fatalf("cmd = %v, want CmdChat", cmd)
	}
	if args.Model != "" {
		t.Errorf("Model = %q, want empty", args.Model)
	}
}
