// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - plain-terminal REPL chat command handler.
//
// Handles the "sagechat chat" command: a readline-style loop with input
// history, streaming output and slash commands, for terminals where the
// full TUI is unwanted.
//
// Interactive commands (during chat):
//   /help, /h            Show available commands
//   /new, /n             Start a new conversation
//   /model [name]        Show or switch model
//   /provider [name]     Show or switch provider
//   /models              List available models
//   /modifier <key>      Toggle a prompt modifier
//   /preset <id>         Apply a preset
//   /stats               Show session statistics
//   /quit, /q            Exit chat
//   Ctrl+C               Stop current generation
//   Ctrl+D               Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/arcum42/sagechat/internal/config"
	"github.com/arcum42/sagechat/internal/provider"
	"github.com/arcum42/sagechat/internal/session"
	"github.com/arcum42/sagechat/internal/stream"
	"github.com/arcum42/sagechat/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// STREAM OUTPUT
// =============================================================================

// replNotifier writes streamed output straight to the terminal. Callbacks
// arrive on the goroutine running Send, so no synchronization is needed.
type replNotifier struct {
	session.NopNotifier
	showStats bool
}

func (n *replNotifier) Chunk(delta, _ string) {
	fmt.Print(delta)
}

func (n *replNotifier) Done(_ string, stats stream.Stats) {
	fmt.Println()
	if n.showStats {
		fmt.Println(infoStyle.Render(stats.Format()))
	}
}

func (n *replNotifier) Failed(err error) {
	fmt.Println()
	fmt.Println(errorStyle.Render("error: " + err.Error()))
}

func (n *replNotifier) Stopped() {
	fmt.Println()
	fmt.Println(warningStyle.Render("[generation stopped]"))
}

func (n *replNotifier) Status(msg string) {
	fmt.Println(infoStyle.Render(msg))
}

func (n *replNotifier) Warning(msg string) {
	fmt.Println(warningStyle.Render(msg))
}

// =============================================================================
// COMMAND HANDLER
// =============================================================================

// HandleChat runs the interactive REPL chat session.
func HandleChat(args Args) {
	app, err := buildApp(args)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	orch := app.Orchestrator(&replNotifier{showStats: app.Cfg.UI.ShowStats})

	input := NewChatCLI()
	defer input.Close()

	// Ctrl+C during generation stops the stream instead of killing the
	// process; liner handles Ctrl+C at the prompt itself.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if orch.Generating() {
				orch.Stop()
			}
		}
	}()

	printWelcome(orch)

	for {
		prompt := promptStyle.Render("you> ")
		text, err := input.ReadInput(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			// io.EOF on Ctrl+D
			fmt.Println()
			return
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "/") {
			if quit := runSlashCommand(orch, app, text); quit {
				return
			}
			continue
		}

		sendErr := orch.Send(context.Background(), text)
		switch {
		case sendErr == nil:
			// Terminal outcome was already printed by the notifier.
		case errors.Is(sendErr, session.ErrNoModel):
			fmt.Println(warningStyle.Render("no model selected; use /model <name> or /models to pick one"))
		case errors.Is(sendErr, session.ErrEmptyPrompt), errors.Is(sendErr, session.ErrBusy):
			// Already reported through the notifier.
		}
	}
}

func printWelcome(orch *session.Orchestrator) {
	fmt.Println(welcomeStyle.Render("sagechat " + Version))
	fmt.Println(infoStyle.Render(fmt.Sprintf("provider: %s | model: %s",
		orch.CurrentProvider(), modelOrNone(orch.CurrentModel()))))
	fmt.Println(infoStyle.Render("type /help for commands, Ctrl+D to exit"))
	fmt.Println()
}

func modelOrNone(model string) string {
	if model == "" {
		return "(none)"
	}
	return model
}

// runSlashCommand executes an interactive command. Returns true to exit.
func runSlashCommand(orch *session.Orchestrator, app *App, text string) bool {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	rest := fields[1:]

	switch cmd {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		printChatHelp()

	case "/new", "/n":
		orch.NewConversation()
		fmt.Println(infoStyle.Render("started a new conversation"))

	case "/model":
		if len(rest) == 0 {
			fmt.Println(infoStyle.Render("model: " + modelOrNone(orch.CurrentModel())))
			break
		}
		orch.SetModel(rest[0])
		fmt.Println(infoStyle.Render("model set to " + rest[0]))

	case "/provider":
		if len(rest) == 0 {
			fmt.Println(infoStyle.Render("provider: " + orch.CurrentProvider().String()))
			break
		}
		p, err := provider.Parse(rest[0])
		if err != nil {
			fmt.Println(warningStyle.Render(err.Error()))
			break
		}
		if err := orch.SwitchProvider(context.Background(), p); err != nil {
			fmt.Println(warningStyle.Render("switched, but model list failed: " + err.Error()))
			break
		}
		fmt.Println(infoStyle.Render(fmt.Sprintf("provider: %s | model: %s",
			orch.CurrentProvider(), modelOrNone(orch.CurrentModel()))))

	case "/models":
		models, err := orch.Models(context.Background())
		if err != nil {
			fmt.Println(warningStyle.Render(err.Error()))
			break
		}
		for _, m := range models {
			fmt.Println("  " + commandStyle.Render(m))
		}

	case "/modifier":
		if len(rest) == 0 {
			enabled := orch.EnabledModifiers()
			fmt.Println(infoStyle.Render("enabled modifiers: " + strings.Join(enabled, ", ")))
			break
		}
		key := rest[0]
		enabled := !contains(orch.EnabledModifiers(), key)
		orch.SetModifier(key, enabled)
		state := "off"
		if enabled {
			state = "on"
		}
		fmt.Println(infoStyle.Render(fmt.Sprintf("modifier %s: %s", key, state)))

	case "/preset":
		if len(rest) == 0 {
			for id := range app.Presets.List() {
				fmt.Println("  " + commandStyle.Render(id))
			}
			break
		}
		warnings, err := app.Presets.Apply(context.Background(), rest[0], orch)
		if err != nil {
			fmt.Println(warningStyle.Render(err.Error()))
			break
		}
		for _, w := range warnings {
			fmt.Println(warningStyle.Render(w))
		}
		fmt.Println(infoStyle.Render(fmt.Sprintf("applied preset %s (provider: %s, model: %s)",
			rest[0], orch.CurrentProvider(), modelOrNone(orch.CurrentModel()))))

	case "/stats":
		printStats(app)

	default:
		fmt.Println(warningStyle.Render("unknown command: " + cmd + " (try /help)"))
	}

	return false
}

func printChatHelp() {
	help := [][2]string{
		{"/help, /h", "show this help"},
		{"/new, /n", "start a new conversation"},
		{"/model [name]", "show or switch model"},
		{"/provider [name]", "show or switch provider (ollama, lmstudio)"},
		{"/models", "list available models"},
		{"/modifier <key>", "toggle a prompt modifier"},
		{"/preset [id]", "list presets or apply one"},
		{"/stats", "show usage statistics"},
		{"/quit, /q", "exit chat"},
	}
	for _, h := range help {
		fmt.Printf("  %-20s %s\n", commandStyle.Render(h[0]), infoStyle.Render(h[1]))
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
