// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/everylabs/matrixd/pkg/logging"
	"github.com/everylabs/matrixd/services/matrix/validation"
)

// DefaultDebounceWindow batches rapid editor writes (save plus rename
// replace) into a single reload.
const DefaultDebounceWindow = 250 * time.Millisecond

// ConfigWatcher watches a matrix config file on disk and applies it to
// the Store when it changes.
//
// The parent directory is watched rather than the file itself because
// most editors replace files via rename, which drops a direct file
// watch. Events are debounced, then the file is read, validated, and
// stored whole. Invalid documents are logged and skipped; the active
// config is never partially updated. Removing the file invalidates the
// cache so the next Load re-resolves.
type ConfigWatcher struct {
	path     string
	store    *Store
	logger   *logging.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher

	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// NewConfigWatcher creates a watcher for the config file at path. Call
// Start to begin watching and Stop to release the inotify handle.
func NewConfigWatcher(path string, s *Store, logger *logging.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = logging.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	return &ConfigWatcher{
		path:     filepath.Clean(path),
		store:    s,
		logger:   logger,
		debounce: DefaultDebounceWindow,
		watcher:  fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start watches the config file's directory and begins applying changes.
// If the file already exists it is loaded once before watching, so a
// restart picks up the on-disk state immediately.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	if _, err := os.Stat(w.path); err == nil {
		w.reload()
	}

	go w.loop(ctx)
	return nil
}

// Stop stops watching and closes the underlying fsnotify watcher.
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *ConfigWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

func (w *ConfigWatcher) loop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time
	removed := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}

			removed = event.Has(fsnotify.Remove)

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer.Stop()
			timer = nil
			timerC = nil

			if removed {
				w.logger.Info("matrix config file removed, invalidating cache", "path", w.path)
				w.store.Invalidate()
				continue
			}
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err.Error())
		}
	}
}

func (w *ConfigWatcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("matrix config file unreadable, keeping active config",
			"path", w.path,
			"error", err.Error(),
		)
		return
	}

	cfg, err := validation.ValidateConfig(data)
	if err != nil {
		w.logger.Warn("matrix config file invalid, keeping active config",
			"path", w.path,
			"error", err.Error(),
		)
		return
	}

	w.store.Set(cfg)
	w.logger.Info("matrix config reloaded from file",
		"path", w.path,
		"version", cfg.Version,
	)
}
