// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discover

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sitterlint/services/lint/language"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x\n"), 0o644))
	}
}

func TestFiles_WalksAndSkips(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"main.go",
		"pkg/util.py",
		"pkg/notes.txt",
		".git/config.go",
		"node_modules/dep/index.js",
		"vendor/lib/lib.go",
		"web/app.min.js",
		"web/app.ts",
	)

	ignore := func(p string) bool { return strings.HasSuffix(p, ".min.js") }
	files, err := Files(context.Background(), []string{root}, Options{Languages: language.Builtin(), Ignore: ignore})
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(root, f)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"main.go", "pkg/util.py", "web/app.ts"}, rel)
}

func TestFiles_ExplicitFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.rs", "b.txt")
	opts := Options{Languages: language.Builtin()}

	files, err := Files(context.Background(), []string{filepath.Join(root, "a.rs"), root}, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.rs")}, files)

	_, err = Files(context.Background(), []string{filepath.Join(root, "b.txt")}, opts)
	assert.ErrorIs(t, err, language.ErrUnsupportedLanguage)

	_, err = Files(context.Background(), []string{filepath.Join(root, "missing.go")}, opts)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFiles_NoRoots(t *testing.T) {
	_, err := Files(context.Background(), nil, Options{Languages: language.Builtin()})
	assert.ErrorIs(t, err, ErrNoRoots)
}

func TestFiles_Canceled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.go")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Files(ctx, []string{root}, Options{Languages: language.Builtin()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSkipDir(t *testing.T) {
	assert.True(t, SkipDir(".git"))
	assert.True(t, SkipDir("node_modules"))
	assert.True(t, SkipDir("vendor"))
	assert.False(t, SkipDir("."))
	assert.False(t, SkipDir("src"))
}

func TestFiles_HiddenFilesOnlyWhenNamed(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, ".sitterlint.yml", "app.py", "pkg/.hidden.py")
	opts := Options{Languages: language.Builtin()}

	files, err := Files(context.Background(), []string{root}, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "app.py")}, files)

	named := filepath.Join(root, ".sitterlint.yml")
	files, err = Files(context.Background(), []string{named}, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{named}, files)
}

func TestSkipFile(t *testing.T) {
	assert.True(t, SkipFile(".sitterlint.yml"))
	assert.True(t, SkipFile(".eslintrc.js"))
	assert.False(t, SkipFile("app.py"))
}
