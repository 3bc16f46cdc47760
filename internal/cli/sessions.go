// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions.go - saved conversation management command handler.
//
// Subcommands:
//   sessions list              List saved conversations
//   sessions show <id>         Print a conversation transcript
//   sessions export <id>       Export (--format json|text|markdown, --output file)
//   sessions import <file>     Import a JSON export (--overwrite on id collision)
//   sessions search <query>    Case-insensitive title/content search
//   sessions delete <id>       Delete one conversation
//   sessions clear             Delete all conversations
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/arcum42/sagechat/internal/history"
)

// HandleSessions dispatches the sessions subcommands.
func HandleSessions(args Args) {
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
		listSessions(app)
	case "show":
		if len(rest) == 0 {
			fatal(fmt.Errorf("usage: sagechat sessions show <id>"))
		}
		showSession(app, rest[0])
	case "export":
		if len(rest) == 0 {
			fatal(fmt.Errorf("usage: sagechat sessions export <id> [--format json|text|markdown] [--output file]"))
		}
		exportSession(app, rest[0], rest[1:])
	case "import":
		if len(rest) == 0 {
			fatal(fmt.Errorf("usage: sagechat sessions import <file> [--overwrite]"))
		}
		importSession(app, rest[0], rest[1:])
	case "search":
		if len(rest) == 0 {
			fatal(fmt.Errorf("usage: sagechat sessions search <query>"))
		}
		searchSessions(app, strings.Join(rest, " "))
	case "delete":
		if len(rest) == 0 {
			fatal(fmt.Errorf("usage: sagechat sessions delete <id>"))
		}
		deleteSession(app, rest[0])
	case "clear":
		app.History.ClearAll()
		fmt.Println("all conversations deleted")
	default:
		fatal(fmt.Errorf("unknown sessions subcommand: %s", sub))
	}
}

func listSessions(app *App) {
	convs := app.History.List()
	if len(convs) == 0 {
		fmt.Println("no saved conversations")
		return
	}
	printConversationTable(convs)
}

func searchSessions(app *App, query string) {
	convs := app.History.Search(query)
	if len(convs) == 0 {
		fmt.Println("no matches")
		return
	}
	printConversationTable(convs)
}

func printConversationTable(convs []history.Conversation) {
	fmt.Printf("%-36s  %-19s  %4s  %s\n", "ID", "UPDATED", "MSGS", "TITLE")
	for _, c := range convs {
		fmt.Printf("%-36s  %-19s  %4d  %s\n",
			c.ID, formatEpochMillis(c.UpdatedAt), len(c.Messages), c.Title)
	}
}

func showSession(app *App, id string) {
	conv, err := app.History.Get(id)
	if err != nil {
		fatal(err)
	}
	fmt.Print(history.ExportText(conv))
}

func deleteSession(app *App, id string) {
	if err := app.History.Delete(id); err != nil {
		fatal(err)
	}
	fmt.Printf("deleted %s\n", id)
}

// =============================================================================
// EXPORT
// =============================================================================

func exportSession(app *App, id string, flags []string) {
	format := "json"
	output := ""
	for i := 0; i < len(flags); i++ {
		switch flags[i] {
		case "--format", "-f":
			if i+1 < len(flags) {
				i++
				format = strings.ToLower(flags[i])
			}
		case "--output", "-o":
			if i+1 < len(flags) {
				i++
				output = flags[i]
			}
		}
	}

	conv, err := app.History.Get(id)
	if err != nil {
		fatal(err)
	}

	var rendered string
	switch format {
	case "json":
		rendered, err = history.ExportJSON(conv)
		if err != nil {
			fatal(err)
		}
		rendered += "\n"
	case "text", "txt":
		rendered = history.ExportText(conv)
	case "markdown", "md":
		rendered = history.ExportMarkdown(conv)
	default:
		fatal(fmt.Errorf("unknown export format: %s (want json, text or markdown)", format))
	}

	if output == "" {
		fmt.Print(rendered)
		return
	}
	if err := os.WriteFile(output, []byte(rendered), 0600); err != nil {
		fatal(err)
	}
	fmt.Printf("exported %s to %s\n", id, output)
}

// =============================================================================
// IMPORT
// =============================================================================

func importSession(app *App, path string, flags []string) {
	overwrite := false
	for _, f := range flags {
		if f == "--overwrite" {
			overwrite = true
		}
	}

	conv, err := importConversation(app.History, path, overwrite)
	if err != nil {
		if errors.Is(err, history.ErrConversationExists) {
			fatal(fmt.Errorf("%w: %s (use --overwrite to replace it)", err, path))
		}
		fatal(err)
	}
	fmt.Printf("imported %s (%d messages) as %s\n", conv.Title, len(conv.Messages), conv.ID)
}

// importConversation reads a JSON export and loads it into the store. The
// store validates the blob's shape and rejects id collisions unless
// overwrite is set.
func importConversation(store *history.Store, path string, overwrite bool) (history.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return history.Conversation{}, err
	}
	return store.Import(data, overwrite)
}

func formatEpochMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}
