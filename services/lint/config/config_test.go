// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sitterlint/services/lint/engine"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

const sample = `
workers: 4
allow-syntax-errors: true
fix:
  enabled: true
  max-passes: 5
  report-fixed: false
ignore:
  - vendor/**
  - "*.min.js"
  - build
rules:
  no-lazy-static: error
  replace-foo-with-bar: off
  max-todo-comments:
    level: info
    options:
      max: 3
environment:
  go-version: "1.22"
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample), "/repo/.sitterlint.yml")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.AllowSyntaxErrors)
	assert.Equal(t, 5, cfg.Fix.MaxPasses)
	assert.Equal(t, "error", cfg.Rules["no-lazy-static"].Level)
	assert.Equal(t, LevelOff, cfg.Rules["replace-foo-with-bar"].Level)
	assert.Equal(t, 3, cfg.Rules["max-todo-comments"].Options["max"])
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil, "")
	require.NoError(t, err)
	assert.True(t, cfg.IsActive("anything"))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "wrkers: 3\n"},
		{"negative workers", "workers: -1\n"},
		{"bad level", "rules:\n  foo: loud\n"},
		{"bad rule id", "rules:\n  Foo Bar: error\n"},
		{"bad glob", "ignore:\n  - \"[\"\n"},
		{"too many passes", "fix:\n  max-passes: 1000\n"},
		{"not yaml", "rules: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "x.yml")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestActivation(t *testing.T) {
	cfg, err := Parse([]byte(sample), "")
	require.NoError(t, err)

	assert.True(t, cfg.IsActive("no-lazy-static"))
	assert.False(t, cfg.IsActive("replace-foo-with-bar"))
	assert.True(t, cfg.IsActive("unlisted"))

	assert.Equal(t, rule.SeverityError, cfg.Severity("no-lazy-static", rule.SeverityWarning))
	assert.Equal(t, rule.SeverityInfo, cfg.Severity("max-todo-comments", rule.SeverityWarning))
	assert.Equal(t, rule.SeverityWarning, cfg.Severity("unlisted", rule.SeverityWarning))

	assert.Nil(t, cfg.Options("no-lazy-static"))
	assert.Equal(t, map[string]any{"max": 3}, cfg.Options("max-todo-comments"))

	cfg.OnlyConfigured = true
	assert.False(t, cfg.IsActive("unlisted"))
}

func TestUnknownRules(t *testing.T) {
	cfg, err := Parse([]byte(sample), "")
	require.NoError(t, err)
	known := map[string]bool{"no-lazy-static": true}
	assert.Equal(t, []string{"max-todo-comments", "replace-foo-with-bar"}, cfg.UnknownRules(func(id string) bool { return known[id] }))
}

func TestEngineOptions(t *testing.T) {
	cfg, err := Parse([]byte(sample), "")
	require.NoError(t, err)

	opts := cfg.EngineOptions(engine.DefaultOptions())
	assert.True(t, opts.Fix)
	assert.Equal(t, 5, opts.MaxFixPasses)
	assert.False(t, opts.ReportFixed)
	assert.Equal(t, 4, opts.Workers)
	assert.True(t, opts.AllowSyntaxErrors)
	assert.Equal(t, map[string]any{"go-version": "1.22"}, opts.Environment)

	def := Default().EngineOptions(engine.DefaultOptions())
	assert.Equal(t, engine.DefaultOptions(), def)
}

func TestFindAndDiscover(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Empty(t, Find(nested))
	cfg, err := Discover(nested)
	require.NoError(t, err)
	assert.Empty(t, cfg.Path)

	file := filepath.Join(root, ".sitterlint.yml")
	require.NoError(t, os.WriteFile(file, []byte("workers: 2\n"), 0o644))

	assert.Equal(t, file, Find(nested))
	cfg, err = Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, file, cfg.Path)
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern, path string
		want          bool
	}{
		{"vendor/**", "vendor/x/y.go", true},
		{"vendor/**", "src/vendor.go", false},
		{"*.min.js", "web/static/app.min.js", true},
		{"*.min.js", "web/static/app.js", false},
		{"build", "build/out.go", true},
		{"build", "src/build/out.go", true},
		{"src/*.py", "src/a.py", true},
		{"src/*.py", "src/sub/a.py", false},
		{"**/testdata/**", "pkg/x/testdata/f.go", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchGlob(tt.pattern, tt.path), "%s vs %s", tt.pattern, tt.path)
	}
}

func TestIgnored_RelativeToConfig(t *testing.T) {
	root := t.TempDir()
	cfg, err := Parse([]byte("ignore:\n  - gen/**\n"), filepath.Join(root, ".sitterlint.yml"))
	require.NoError(t, err)

	assert.True(t, cfg.Ignored(filepath.Join(root, "gen", "a.go")))
	assert.False(t, cfg.Ignored(filepath.Join(root, "src", "gen.go")))
}

const sampleTOML = `
workers = 4
ignore = ["vendor/**"]

[fix]
enabled = true
max-passes = 5

[rules]
no-lazy-static = "error"
replace-foo-with-bar = "off"

[rules.max-todo-comments]
level = "info"
options = { max = 3 }
`

func TestParseTOML(t *testing.T) {
	cfg, err := ParseTOML([]byte(sampleTOML), "/repo/.sitterlint.toml")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.Fix.Enabled)
	assert.Equal(t, 5, cfg.Fix.MaxPasses)
	assert.Equal(t, []string{"vendor/**"}, cfg.Ignore)
	assert.False(t, cfg.IsActive("replace-foo-with-bar"))
	assert.Equal(t, rule.SeverityError, cfg.Severity("no-lazy-static", rule.SeverityWarning))
	assert.Equal(t, rule.SeverityInfo, cfg.Severity("max-todo-comments", rule.SeverityWarning))
	assert.EqualValues(t, 3, cfg.Options("max-todo-comments")["max"])
}

func TestParseTOML_Invalid(t *testing.T) {
	_, err := ParseTOML([]byte("workers = [\n"), "")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseTOML([]byte("colour = true\n"), "")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg, err := ParseTOML(nil, "")
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Workers)
}

func TestLoad_TOMLByExtension(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, ".sitterlint.toml")
	require.NoError(t, os.WriteFile(file, []byte("workers = 3\n"), 0o644))

	assert.Equal(t, file, Find(root))
	cfg, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
}
