// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// SETTINGS FILE WATCHER
// =============================================================================

// SettingsWatcher reloads the settings file when it changes on disk, so
// edits made by another front-end (or by hand) take effect without restart.
//
// Watches the parent directory rather than the file itself: atomic saves
// replace the file by rename, which would invalidate a direct file watch.
type SettingsWatcher struct {
	store    *SettingsStore
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(Settings)

	mu      sync.Mutex
	pending bool
	lastEv  time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSettingsWatcher creates a watcher for the store's backing file.
// onChange is invoked with the freshly loaded settings after each
// debounced change.
func NewSettingsWatcher(store *SettingsStore, debounce time.Duration, onChange func(Settings)) (*SettingsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &SettingsWatcher{
		store:    store,
		watcher:  watcher,
		debounce: debounce,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching for settings file changes.
func (w *SettingsWatcher) Watch() error {
	dir := filepath.Dir(w.store.Path())
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	go w.processEvents()
	go w.processPending()

	return nil
}

// Close stops watching and releases resources.
func (w *SettingsWatcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

// processEvents marks the settings file dirty on relevant fs events.
func (w *SettingsWatcher) processEvents() {
	target := filepath.Base(w.store.Path())

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = true
			w.lastEv = time.Now()
			w.mu.Unlock()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the next poll tick continues.
		}
	}
}

// processPending fires the reload callback once events settle.
func (w *SettingsWatcher) processPending() {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			ready := w.pending && time.Since(w.lastEv) >= w.debounce
			if ready {
				w.pending = false
			}
			w.mu.Unlock()

			if ready {
				settings := w.store.Load()
				if w.onChange != nil {
					w.onChange(settings)
				}
			}
		}
	}
}
