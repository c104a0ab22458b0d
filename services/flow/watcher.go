// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/callflow/services/flow/config"
)

// WatcherOptions configures the Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait for more changes before re-running.
	// Default: 300ms
	DebounceWindow time.Duration

	// IgnoreDirs are directory names never watched.
	// Default: [".git", "__pycache__", "node_modules", ".idea", ".venv"]
	IgnoreDirs []string

	// OnRun is called after every run with its result or error.
	OnRun func(*RunResult, error)
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceWindow: 300 * time.Millisecond,
		IgnoreDirs:     []string{".git", "__pycache__", "node_modules", ".idea", ".venv"},
	}
}

// Watcher re-runs the engine whenever a source file changes.
//
// # Description
//
// Watches every source directory recursively, and the parent directory of
// every source file. Events are batched over a debounce window so saving
// several files triggers one run. Changes to the output files themselves
// are ignored.
//
// # Thread Safety
//
// Run must be called once. Runs never overlap. A watcher that is never
// run must be released with Close.
type Watcher struct {
	engine  *Engine
	cfg     config.Config
	watcher *fsnotify.Watcher
	options WatcherOptions

	ignoreDirs map[string]bool
	outputs    map[string]bool
}

// NewWatcher creates a watcher for cfg.Sources.
//
// # Outputs
//
//   - *Watcher: Ready to Run.
//   - error: Invalid configuration or fsnotify failure.
func NewWatcher(engine *Engine, cfg config.Config, opts *WatcherOptions) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultWatcherOptions().DebounceWindow
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		engine:     engine,
		cfg:        cfg,
		watcher:    fw,
		options:    *opts,
		ignoreDirs: make(map[string]bool),
		outputs:    make(map[string]bool),
	}
	for _, dir := range opts.IgnoreDirs {
		w.ignoreDirs[dir] = true
	}
	for _, out := range outputPaths(cfg.Output) {
		w.outputs[out] = true
	}
	return w, nil
}

// Run performs an initial run, then re-runs on changes until ctx is done.
//
// Failed runs are reported through OnRun and the log; they do not stop
// watching.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	for _, source := range w.cfg.Sources {
		if err := w.add(source); err != nil {
			return err
		}
	}

	w.runOnce(ctx, nil)

	var pending []string
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.ignoreDirs[info.Name()] {
					_ = w.addRecursive(event.Name)
				}
			}
			if !w.relevant(event.Name) {
				continue
			}
			pending = append(pending, event.Name)
			if timer == nil {
				timer = time.NewTimer(w.options.DebounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(w.options.DebounceWindow)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.engine.logger.Warn("file watcher error", slog.String("error", err.Error()))

		case <-timerC:
			timer, timerC = nil, nil
			changed := dedupe(pending)
			pending = pending[:0]
			w.runOnce(ctx, changed)
		}
	}
}

// Close releases the underlying file watch. Run closes it on return; Close
// may be called again safely.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) runOnce(ctx context.Context, changed []string) {
	if len(changed) > 0 {
		w.engine.logger.Info("sources changed, regenerating", slog.Any("files", changed))
	}
	res, err := w.engine.Run(ctx, w.cfg)
	if err != nil {
		w.engine.logger.Error("run failed", slog.String("error", err.Error()))
	}
	if w.options.OnRun != nil {
		w.options.OnRun(res, err)
	}
}

// add watches a source: directories recursively, files via their parent.
func (w *Watcher) add(source string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("watching %s: %w", source, err)
	}
	if info.IsDir() {
		return w.addRecursive(source)
	}
	return w.watcher.Add(filepath.Dir(source))
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && w.ignoreDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// relevant reports whether a change to path should trigger a run.
func (w *Watcher) relevant(path string) bool {
	if w.outputs[filepath.Clean(path)] {
		return false
	}
	base := filepath.Base(path)
	if base == ".gitignore" {
		return true
	}
	if strings.HasPrefix(base, ".") {
		return false
	}
	registry := w.engine.registry
	if registry == nil {
		registry = registryFor(w.cfg)
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	_, ok := registry.GetByExtension(ext)
	return ok
}

// outputPaths returns the files Run writes for output.
func outputPaths(output string) []string {
	paths := []string{filepath.Clean(output)}
	if ext, err := config.OutputExtension(output); err == nil && config.IsImageExtension(ext) {
		paths = append(paths, filepath.Clean(strings.TrimSuffix(output, "."+ext)+".gv"))
	}
	return paths
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
