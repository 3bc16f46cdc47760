// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrClosed = errors.New("telemetry recorder closed")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- One row per generation attempt, successful or not.
CREATE TABLE IF NOT EXISTS generations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at INTEGER NOT NULL,         -- Unix millis
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    prompt_tokens INTEGER NOT NULL,
    completion_tokens INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    ttft_ms INTEGER NOT NULL,            -- time to first chunk, 0 if none
    stopped INTEGER NOT NULL,            -- user pressed stop
    error TEXT NOT NULL DEFAULT ''       -- empty on success
);

CREATE INDEX IF NOT EXISTS idx_generations_started ON generations(started_at);
CREATE INDEX IF NOT EXISTS idx_generations_model ON generations(provider, model);
`

// =============================================================================
// RECORDER
// =============================================================================

// Generation is one recorded generation attempt.
type Generation struct {
	StartedAt        time.Time
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
	TTFT             time.Duration
	Stopped          bool
	Error            string
}

// Recorder persists generation telemetry to a local SQLite database.
// A nil *Recorder is valid and drops everything, so callers can hold one
// unconditionally and leave it nil when telemetry is disabled.
type Recorder struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// Open opens or creates the telemetry database at path.
func Open(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure database: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Recorder{db: db}, nil
}

// Close closes the database. Safe on nil.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}

// Record inserts one generation row. Safe on nil.
func (r *Recorder) Record(ctx context.Context, g Generation) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	started := g.StartedAt
	if started.IsZero() {
		started = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO generations
			(started_at, provider, model, prompt_tokens, completion_tokens,
			 duration_ms, ttft_ms, stopped, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		started.UnixMilli(), g.Provider, g.Model,
		g.PromptTokens, g.CompletionTokens,
		g.Duration.Milliseconds(), g.TTFT.Milliseconds(),
		boolToInt(g.Stopped), g.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record generation: %w", err)
	}
	return nil
}

// =============================================================================
// SUMMARIES
// =============================================================================

// ModelUsage aggregates generations for one provider/model pair.
type ModelUsage struct {
	Provider         string
	Model            string
	Generations      int
	PromptTokens     int64
	CompletionTokens int64
	TotalDuration    time.Duration
	Errors           int
	Stops            int
}

// Summary aggregates all recorded generations.
type Summary struct {
	Generations      int
	PromptTokens     int64
	CompletionTokens int64
	TotalDuration    time.Duration
	Errors           int
	Stops            int
	PerModel         []ModelUsage
}

// Summarize returns aggregate usage since the given time. A zero since
// covers everything. Safe on nil.
func (r *Recorder) Summarize(ctx context.Context, since time.Time) (Summary, error) {
	if r == nil {
		return Summary{}, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Summary{}, ErrClosed
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT provider, model, COUNT(*),
		       SUM(prompt_tokens), SUM(completion_tokens), SUM(duration_ms),
		       SUM(CASE WHEN error != '' THEN 1 ELSE 0 END),
		       SUM(stopped)
		FROM generations
		WHERE started_at >= ?
		GROUP BY provider, model
		ORDER BY COUNT(*) DESC, provider, model`,
		since.UnixMilli(),
	)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	var sum Summary
	for rows.Next() {
		var u ModelUsage
		var durationMs int64
		if err := rows.Scan(&u.Provider, &u.Model, &u.Generations,
			&u.PromptTokens, &u.CompletionTokens, &durationMs,
			&u.Errors, &u.Stops); err != nil {
			return Summary{}, fmt.Errorf("failed to scan usage row: %w", err)
		}
		u.TotalDuration = time.Duration(durationMs) * time.Millisecond

		sum.Generations += u.Generations
		sum.PromptTokens += u.PromptTokens
		sum.CompletionTokens += u.CompletionTokens
		sum.TotalDuration += u.TotalDuration
		sum.Errors += u.Errors
		sum.Stops += u.Stops
		sum.PerModel = append(sum.PerModel, u)
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("failed to read usage rows: %w", err)
	}
	return sum, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
