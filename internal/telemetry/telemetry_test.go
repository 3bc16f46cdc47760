// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordAndSummarize(t *testing.T) {
	r := openTestRecorder(t)
	ctx := context.Background()

	gens := []Generation{
		{Provider: "ollama", Model: "llama3:8b", PromptTokens: 10, CompletionTokens: 40, Duration: 2 * time.Second, TTFT: 300 * time.Millisecond},
		{Provider: "ollama", Model: "llama3:8b", PromptTokens: 5, CompletionTokens: 20, Duration: time.Second},
		{Provider: "lmstudio", Model: "qwen2:7b", PromptTokens: 8, CompletionTokens: 0, Duration: 500 * time.Millisecond, Error: "connection refused"},
		{Provider: "ollama", Model: "llava:7b", PromptTokens: 12, CompletionTokens: 3, Stopped: true},
	}
	for _, g := range gens {
		if err := r.Record(ctx, g); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	sum, err := r.Summarize(ctx, time.Time{})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if sum.Generations != 4 {
		t.Errorf("Generations = %d, want 4", sum.Generations)
	}
	if sum.PromptTokens != 35 {
		t.Errorf("PromptTokens = %d, want 35", sum.PromptTokens)
	}
	if sum.CompletionTokens != 63 {
		t.Errorf("CompletionTokens = %d, want 63", sum.CompletionTokens)
	}
	if sum.Errors != 1 {
		t.Errorf("Errors = %d, want 1", sum.Errors)
	}
	if sum.Stops != 1 {
		t.Errorf("Stops = %d, want 1", sum.Stops)
	}
	if len(sum.PerModel) != 3 {
		t.Fatalf("PerModel count = %d, want 3", len(sum.PerModel))
	}
	// Ordered by generation count, so llama3:8b comes first.
	top := sum.PerModel[0]
	if top.Model != "llama3:8b" || top.Generations != 2 {
		t.Errorf("top model = %s x%d, want llama3:8b x2", top.Model, top.Generations)
	}
	if top.TotalDuration != 3*time.Second {
		t.Errorf("top duration = %v, want 3s", top.TotalDuration)
	}
}

func TestSummarizeSince(t *testing.T) {
	r := openTestRecorder(t)
	ctx := context.Background()

	old := Generation{StartedAt: time.Now().Add(-48 * time.Hour), Provider: "ollama", Model: "llama3:8b", CompletionTokens: 100}
	recent := Generation{Provider: "ollama", Model: "llama3:8b", CompletionTokens: 7}
	if err := r.Record(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := r.Record(ctx, recent); err != nil {
		t.Fatal(err)
	}

	sum, err := r.Summarize(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if sum.Generations != 1 {
		t.Errorf("Generations = %d, want only the recent row", sum.Generations)
	}
	if sum.CompletionTokens != 7 {
		t.Errorf("CompletionTokens = %d, want 7", sum.CompletionTokens)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	ctx := context.Background()

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Record(ctx, Generation{Provider: "ollama", Model: "llama3:8b"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	sum, err := reopened.Summarize(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Generations != 1 {
		t.Errorf("Generations after reopen = %d, want 1", sum.Generations)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	ctx := context.Background()

	if err := r.Record(ctx, Generation{Provider: "ollama", Model: "m"}); err != nil {
		t.Errorf("nil Record returned %v", err)
	}
	if _, err := r.Summarize(ctx, time.Time{}); err != nil {
		t.Errorf("nil Summarize returned %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("nil Close returned %v", err)
	}
}

func TestRecordAfterClose(t *testing.T) {
	r := openTestRecorder(t)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Record(context.Background(), Generation{}); err != ErrClosed {
		t.Errorf("Record after close = %v, want ErrClosed", err)
	}
}
