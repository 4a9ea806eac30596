// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sitterlint/services/lint/engine"
	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/registry"
	"github.com/AleutianAI/sitterlint/services/lint/report"
	"github.com/AleutianAI/sitterlint/services/lint/rules"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	set := registry.NewRuleSet(language.Builtin(), registry.WithLogger(quiet))
	require.NoError(t, set.Register(rules.ReplaceFooWithBar()))
	return engine.New(set, engine.WithLogger(quiet), engine.WithWorkers(1))
}

func startWatcher(t *testing.T, root string, opts Options) <-chan *report.RunReport {
	t.Helper()
	reports := make(chan *report.RunReport, 16)
	opts.Debounce = 20 * time.Millisecond
	opts.Logger = quiet
	w, err := New(newEngine(t), func(rep *report.RunReport) { reports <- rep }, opts, root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	require.NoError(t, w.Start(ctx))
	assert.ErrorIs(t, w.Start(ctx), ErrAlreadyStarted)
	return reports
}

// waitFor returns the first report containing path with at least one
// violation.
func waitFor(t *testing.T, reports <-chan *report.RunReport, path string) report.FileResult {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case rep := <-reports:
			for _, f := range rep.Files {
				if f.Path == path && len(f.Violations) > 0 {
					return f
				}
			}
		case <-deadline:
			t.Fatalf("no report with violations for %s", path)
		}
	}
}

func TestWatcher_RelintsChangedFile(t *testing.T) {
	root := t.TempDir()
	reports := startWatcher(t, root, Options{})

	path := filepath.Join(root, "app.py")
	require.NoError(t, os.WriteFile(path, []byte("foo = 1\n"), 0o644))

	res := waitFor(t, reports, path)
	assert.Equal(t, "replace-foo-with-bar", res.Violations[0].RuleID)
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	reports := startWatcher(t, root, Options{})

	dir := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(dir, 0o755))
	// Give the watcher time to add the new directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "util.go")
	require.NoError(t, os.WriteFile(path, []byte("package pkg\n\nvar foo = 1\n"), 0o644))

	res := waitFor(t, reports, path)
	assert.Len(t, res.Violations, 1)
}

func TestWatcher_SkipsIgnoredAndUnknownFiles(t *testing.T) {
	root := t.TempDir()
	ignore := func(p string) bool { return strings.HasSuffix(p, "_gen.py") }
	reports := startWatcher(t, root, Options{Ignore: ignore})

	require.NoError(t, os.WriteFile(filepath.Join(root, "model_gen.py"), []byte("foo = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("foo\n"), 0o644))
	path := filepath.Join(root, "main.py")
	require.NoError(t, os.WriteFile(path, []byte("foo = 2\n"), 0o644))

	waitFor(t, reports, path)
	// Drain whatever else arrives; none of it may mention the skipped files.
	timeout := time.After(200 * time.Millisecond)
	for {
		select {
		case rep := <-reports:
			for _, f := range rep.Files {
				assert.Equal(t, path, f.Path)
			}
		case <-timeout:
			return
		}
	}
}

func TestWatcher_Lintable(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "b.rs")
	require.NoError(t, os.WriteFile(keep, []byte("fn main() {}\n"), 0o644))

	w, err := New(newEngine(t), nil, Options{Logger: quiet}, root)
	require.NoError(t, err)
	defer w.Stop()

	gone := filepath.Join(root, "gone.rs")
	text := filepath.Join(root, "x.txt")
	got := w.lintable(map[string]bool{keep: true, gone: true, text: true, root: true})
	assert.Equal(t, []string{keep}, got)
}
