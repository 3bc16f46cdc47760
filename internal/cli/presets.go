// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// presets.go - preset management command handler.
//
// Subcommands:
//   presets [list]           List presets (built-in and user)
//   presets show <id>        Print one preset as JSON
//   presets delete <id>      Delete a user preset or revert an override
package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// HandlePresets dispatches the presets subcommands.
func HandlePresets(args Args) {
	app, err := buildApp(args)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	sub := "list"
	rest := args.Raw
	if len(rest) > 0 {
		sub = strings.ToLower(rest[0])
		rest = rest[1:]
	}

	switch sub {
	case "list":
		listPresets(app)
	case "show":
		if len(rest) == 0 {
			fatal(fmt.Errorf("usage: sagechat presets show <id>"))
		}
		showPreset(app, rest[0])
	case "delete":
		if len(rest) == 0 {
			fatal(fmt.Errorf("usage: sagechat presets delete <id>"))
		}
		deletePreset(app, rest[0])
	default:
		fatal(fmt.Errorf("unknown presets subcommand: %s", sub))
	}
}

func listPresets(app *App) {
	all := app.Presets.List()
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("%-20s  %-8s  %-12s  %s\n", "ID", "SOURCE", "CATEGORY", "NAME")
	for _, id := range ids {
		p := all[id]
		source := "user"
		switch {
		case app.Presets.IsOverride(id):
			source = "edited"
		case p.IsBuiltin:
			source = "builtin"
		}
		fmt.Printf("%-20s  %-8s  %-12s  %s\n", p.ID, source, p.Category, p.Name)
	}
}

func showPreset(app *App, id string) {
	p, err := app.Presets.Get(id)
	if err != nil {
		fatal(err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(data))
}

func deletePreset(app *App, id string) {
	wasOverride := app.Presets.IsOverride(id)
	if err := app.Presets.Delete(id); err != nil {
		fatal(err)
	}
	if wasOverride {
		fmt.Printf("reverted %s to built-in values\n", id)
		return
	}
	fmt.Printf("deleted %s\n", id)
}
