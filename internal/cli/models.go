// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - model listing command handler.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/arcum42/sagechat/internal/provider"
)

// HandleModels lists models available from the active provider.
// With --vision, only vision-capable models are shown.
func HandleModels(args Args) {
	app, err := buildApp(args)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	vision := false
	for _, a := range args.Raw {
		if a == "--vision" || a == "vision" {
			vision = true
		}
	}

	prov, err := provider.Parse(app.Cfg.DefaultProvider)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var models []string
	if vision {
		models, err = app.Registry.ListVisionModels(ctx, prov, true)
	} else {
		models, err = app.Registry.ListModels(ctx, prov, true)
	}
	if err != nil {
		fatal(err)
	}

	if len(models) == 0 {
		fmt.Printf("no models available from %s\n", prov)
		return
	}

	kind := "models"
	if vision {
		kind = "vision models"
	}
	fmt.Printf("%s (%s):\n", kind, prov)
	for _, m := range models {
		marker := "  "
		if m == app.Cfg.DefaultModel {
			marker = "* "
		}
		fmt.Println(marker + m)
	}
}
