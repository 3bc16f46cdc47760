// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - configuration inspection and editing command handler.
//
// Subcommands:
//   config show               Print the effective configuration
//   config path               Print the config file location
//   config get <key>          Read a value (dot notation, e.g. ollama.base_url)
//   config set <key> <value>  Write a value and save the config file
package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arcum42/sagechat/internal/config"
)

// HandleConfig dispatches the config subcommands.
func HandleConfig(args Args) {
	cfg, err := loadConfig(args)
	if err != nil {
		fatal(err)
	}

	sub := "show"
	rest := args.Raw
	if len(rest) > 0 {
		sub = strings.ToLower(rest[0])
		rest = rest[1:]
	}

	switch sub {
	case "show":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(data))

	case "path":
		path, err := config.ConfigPathTOML()
		if err != nil {
			fatal(err)
		}
		fmt.Println(path)

	case "get":
		if len(rest) == 0 {
			fatal(fmt.Errorf("usage: sagechat config get <key>"))
		}
		value, err := cfg.Get(rest[0])
		if err != nil {
			fatal(err)
		}
		fmt.Printf("%v\n", value)

	case "set":
		if len(rest) < 2 {
			fatal(fmt.Errorf("usage: sagechat config set <key> <value>"))
		}
		key, value := rest[0], strings.Join(rest[1:], " ")
		if err := cfg.Set(key, value); err != nil {
			fatal(err)
		}
		if err := cfg.Validate(); err != nil {
			fatal(fmt.Errorf("rejected: %w", err))
		}
		if err := config.Save(cfg); err != nil {
			fatal(err)
		}
		fmt.Printf("%s = %s\n", key, value)

	default:
		fatal(fmt.Errorf("unknown config subcommand: %s", sub))
	}
}
