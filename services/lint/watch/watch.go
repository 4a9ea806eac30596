// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-lints files as they change on disk.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/sitterlint/services/lint/discover"
	"github.com/AleutianAI/sitterlint/services/lint/engine"
	"github.com/AleutianAI/sitterlint/services/lint/report"
)

// DefaultDebounce is how long the watcher waits for more changes.
const DefaultDebounce = 100 * time.Millisecond

// ErrAlreadyStarted is returned by Start on a running watcher.
var ErrAlreadyStarted = errors.New("watcher already started")

// Handler receives the report for each debounced batch of changes.
//
// Called from a single goroutine; a slow handler delays the next batch.
type Handler func(rep *report.RunReport)

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period before a batch is linted.
	// Default: 100ms
	Debounce time.Duration

	// Ignore excludes paths, typically config.Config.Ignored.
	Ignore discover.IgnoreFunc

	// BufferSize is the size of the change channel.
	// Default: 1000
	BufferSize int

	// Logger receives watch events. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		Debounce:   DefaultDebounce,
		BufferSize: 1000,
		Logger:     slog.Default(),
	}
}

// Watcher lints files under a set of roots whenever they change.
//
// Description:
//
//	Directories are watched recursively with fsnotify. Changed paths are
//	collected until Debounce passes without a new event, then the batch
//	of existing, lintable, non-ignored files is linted with the engine
//	and the report handed to the handler.
//
// Thread Safety:
//
//	Start and Stop are safe for concurrent use. The handler is called from
//	a single goroutine.
type Watcher struct {
	roots   []string
	fsw     *fsnotify.Watcher
	eng     *engine.Engine
	handler Handler
	opts    Options
	logger  *slog.Logger

	changes  chan string
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// New creates a watcher. Call Start to begin watching.
//
// Inputs:
//
//	eng - The engine that lints each batch.
//	handler - Receives each batch's report.
//	opts - Options; zero fields take defaults.
//	roots - Directories to watch.
//
// Outputs:
//
//	*Watcher - Ready to start.
//	error - Non-nil if the fsnotify watcher could not be created.
func New(eng *engine.Engine, handler Handler, opts Options, roots ...string) (*Watcher, error) {
	def := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = def.Debounce
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = def.BufferSize
	}
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		roots:   roots,
		fsw:     fsw,
		eng:     eng,
		handler: handler,
		opts:    opts,
		logger:  opts.Logger,
		changes: make(chan string, opts.BufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Start adds the roots to the watch list and begins processing events.
//
// Description:
//
//	Spawns an event processor and a debouncer. Both exit when Stop is
//	called or ctx is cancelled; a pending batch is dropped, not linted.
//
// Outputs:
//
//	error - Non-nil if a root could not be watched.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.watching = true
	w.mu.Unlock()

	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			w.mu.Lock()
			w.watching = false
			w.mu.Unlock()
			return err
		}
	}

	go w.processEvents(ctx)
	go func() {
		defer close(w.stopped)
		w.debounceLoop(ctx)
	}()

	w.logger.Info("watching for changes", slog.Any("roots", w.roots))
	return nil
}

// Stop stops the watcher and waits for the debouncer to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()

		w.mu.Lock()
		started := w.watching
		w.watching = false
		w.mu.Unlock()
		if started {
			<-w.stopped
		}
	})
}

// addRecursive adds a directory and its subdirectories to the watch list.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && (discover.SkipDir(d.Name()) || w.ignored(p)) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

func (w *Watcher) ignored(p string) bool {
	return w.opts.Ignore != nil && w.opts.Ignore(p)
}

// processEvents forwards relevant fsnotify events to the debouncer.
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !discover.SkipDir(filepath.Base(event.Name)) && !w.ignored(event.Name) {
						if err := w.addRecursive(event.Name); err != nil {
							w.logger.Warn("watch directory failed",
								slog.String("path", event.Name),
								slog.String("error", err.Error()))
						}
					}
					continue
				}
			}

			select {
			case w.changes <- event.Name:
			default:
				w.logger.Warn("change buffer full, dropping event", slog.String("path", event.Name))
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// debounceLoop batches changed paths and lints them after the quiet period.
func (w *Watcher) debounceLoop(ctx context.Context) {
	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case p := <-w.changes:
			pending[p] = true
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			paths := w.lintable(pending)
			clear(pending)
			if len(paths) == 0 {
				continue
			}
			rep, err := w.eng.Run(ctx, paths)
			if err != nil {
				w.logger.Warn("re-lint aborted", slog.String("error", err.Error()))
			}
			if w.handler != nil {
				w.handler(rep)
			}
		}
	}
}

// lintable returns the sorted paths in pending that still exist as
// regular files with a known language and are not ignored.
func (w *Watcher) lintable(pending map[string]bool) []string {
	langs := w.eng.Languages()
	var out []string
	for p := range pending {
		if w.ignored(p) {
			continue
		}
		if _, err := langs.ForPath(p); err != nil {
			continue
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
