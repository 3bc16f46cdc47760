// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// stats.go - usage statistics command handler.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/arcum42/sagechat/internal/util"
)

// HandleStats prints aggregate usage statistics from the telemetry log.
// With --since <duration> (e.g. 24h, 168h) only recent activity counts.
func HandleStats(args Args) {
	app, err := buildApp(args)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	var since time.Time
	for i := 0; i < len(args.Raw); i++ {
		if args.Raw[i] == "--since" && i+1 < len(args.Raw) {
			d, err := time.ParseDuration(args.Raw[i+1])
			if err != nil {
				fatal(fmt.Errorf("invalid --since duration: %w", err))
			}
			since = time.Now().Add(-d)
			i++
		}
	}

	printStatsSince(app, since)
}

func printStats(app *App) {
	printStatsSince(app, time.Time{})
}

func printStatsSince(app *App, since time.Time) {
	if app.Recorder == nil {
		fmt.Println("telemetry is disabled (generation.telemetry_enabled = false)")
		return
	}

	sum, err := app.Recorder.Summarize(context.Background(), since)
	if err != nil {
		fatal(err)
	}

	if sum.Generations == 0 {
		fmt.Println("no recorded generations")
		return
	}

	fmt.Printf("generations:       %d\n", sum.Generations)
	fmt.Printf("prompt tokens:     %d\n", sum.PromptTokens)
	fmt.Printf("completion tokens: %d\n", sum.CompletionTokens)
	fmt.Printf("total time:        %s\n", sum.TotalDuration.Round(time.Second))
	fmt.Printf("errors:            %d\n", sum.Errors)
	fmt.Printf("stopped:           %d\n", sum.Stops)

	if len(sum.PerModel) > 0 {
		fmt.Println()
		fmt.Printf("%-10s %-30s %6s %10s %10s\n", "PROVIDER", "MODEL", "GENS", "TOKENS", "TIME")
		for _, m := range sum.PerModel {
			fmt.Printf("%-10s %-30s %6d %10d %10s\n",
				m.Provider, util.TruncateRunes(m.Model, 27), m.Generations,
				m.CompletionTokens, m.TotalDuration.Round(time.Second))
		}
	}
}
