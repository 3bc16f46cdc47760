// sagechat - streaming chat for local LLM backends (Ollama and LM Studio).
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"github.com/arcum42/sagechat/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Keep the cli package's build info in sync with the linker-set values.
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdTUI:
		cli.HandleTUI(args)
	case cli.CmdChat:
		cli.HandleChat(args)
	case cli.CmdServe:
		cli.HandleServe(args)
	case cli.CmdSessions:
		cli.HandleSessions(args)
	case cli.CmdModels:
		cli.HandleModels(args)
	case cli.CmdPresets:
		cli.HandlePresets(args)
	case cli.CmdConfig:
		cli.HandleConfig(args)
	case cli.CmdStats:
		cli.HandleStats(args)
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.Usage()
	}
}
