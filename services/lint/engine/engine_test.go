// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sitterlint/services/lint/filectx"
	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/registry"
	"github.com/AleutianAI/sitterlint/services/lint/report"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// =============================================================================
// Helpers
// =============================================================================

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newEngine(t *testing.T, rules []*rule.Rule, opts ...Option) *Engine {
	t.Helper()
	set := registry.NewRuleSet(language.Builtin(), registry.WithLogger(quiet))
	for _, r := range rules {
		require.NoError(t, set.Register(r), r.ID)
	}
	return New(set, append([]Option{WithLogger(quiet)}, opts...)...)
}

func python(t *testing.T, e *Engine) *language.Language {
	t.Helper()
	lang, ok := e.Languages().ByName(language.Python)
	require.True(t, ok)
	return lang
}

// replaceRule reports every identifier matching query and replaces it
// with the result of replace.
func replaceRule(id, query string, replace func(string) string) *rule.Rule {
	return &rule.Rule{
		ID:        id,
		Languages: []string{language.Python},
		Fixable:   true,
		Severity:  rule.SeverityWarning,
		Listeners: []rule.Listener{{
			Query: query,
			Handle: func(c *rule.Context, m rule.Match) error {
				text := c.Text(m.Node)
				c.ReportNode(m.Node, fmt.Sprintf("unexpected %s", text), rule.NewFix(rule.ReplaceNode(m.Node, replace(text))))
				return nil
			},
		}},
	}
}

func fooToBar() *rule.Rule {
	return replaceRule("replace-foo", `((identifier) @id (#eq? @id "foo"))`, func(string) string { return "bar" })
}

func writeFiles(t *testing.T, files map[string]string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func resultFor(t *testing.T, rep *report.RunReport, name string) report.FileResult {
	t.Helper()
	for _, f := range rep.Files {
		if filepath.Base(f.Path) == name {
			return f
		}
	}
	t.Fatalf("no result for %s", name)
	return report.FileResult{}
}

const fooSource = "foo = 1\nprint(foo)\nfoo()\n"

// =============================================================================
// Linting
// =============================================================================

func TestLintSource_ReportsInSourceOrder(t *testing.T) {
	e := newEngine(t, []*rule.Rule{fooToBar()})

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte(fooSource))
	require.NoError(t, err)

	assert.Equal(t, report.StatusOK, res.Status)
	assert.Equal(t, 1, res.Passes)
	require.Len(t, res.Violations, 3)
	for i, v := range res.Violations {
		assert.Equal(t, "replace-foo", v.RuleID)
		assert.Equal(t, rule.SeverityWarning, v.Severity)
		assert.Equal(t, i+1, v.Range.Start.Line)
		assert.NotNil(t, v.Fix)
		assert.False(t, v.FixApplied)
	}
	assert.Nil(t, res.FixedSource)
}

func TestLintSource_FixConverges(t *testing.T) {
	e := newEngine(t, []*rule.Rule{fooToBar()}, WithFix(true))

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte(fooSource))
	require.NoError(t, err)

	assert.Equal(t, report.StatusOK, res.Status)
	assert.Equal(t, 2, res.Passes)
	assert.Equal(t, 3, res.FixesApplied)
	assert.Empty(t, res.Violations)
	assert.Len(t, res.Fixed, 3)
	assert.Equal(t, "bar = 1\nprint(bar)\nbar()\n", string(res.FixedSource))
	assert.True(t, res.Changed())

	// Relinting the output finds nothing.
	again, err := e.LintSource(context.Background(), "a.py", python(t, e), res.FixedSource)
	require.NoError(t, err)
	assert.Empty(t, again.Violations)
	assert.Equal(t, 1, again.Passes)
	assert.Nil(t, again.FixedSource)
}

func TestLintSource_ReportFixedDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.Fix = true
	opts.ReportFixed = false
	e := newEngine(t, []*rule.Rule{fooToBar()}, WithOptions(opts))

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte(fooSource))
	require.NoError(t, err)
	assert.Empty(t, res.Fixed)
	assert.Equal(t, 3, res.FixesApplied)
}

func TestLintSource_FixLimit(t *testing.T) {
	grow := replaceRule("grow", `((identifier) @id (#match? @id "^foo"))`, func(s string) string { return s + "_x" })
	e := newEngine(t, []*rule.Rule{grow}, WithFix(true))

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte("foo = 1\n"))
	require.NoError(t, err)

	fixed := "foo" + strings.Repeat("_x", DefaultMaxFixPasses) + " = 1\n"
	assert.Equal(t, report.StatusFixLimitReached, res.Status)
	assert.Equal(t, DefaultMaxFixPasses+1, res.Passes)
	assert.Equal(t, DefaultMaxFixPasses, res.FixesApplied)
	assert.Equal(t, fixed, string(res.FixedSource))

	// The remaining violation comes from the report-only pass over the
	// final buffer and is not also counted as fixed.
	require.Len(t, res.Violations, 1)
	v := res.Violations[0]
	assert.False(t, v.FixApplied)
	assert.Equal(t, 0, v.Range.StartByte)
	assert.Equal(t, len("foo")+2*DefaultMaxFixPasses, v.Range.EndByte)
	assert.Len(t, res.Fixed, DefaultMaxFixPasses)

	sum := report.Summarize([]report.FileResult{res})
	assert.Equal(t, 1, sum.Warnings)
	assert.Equal(t, DefaultMaxFixPasses, sum.Fixed)
}

func TestLintSource_ConvergesAtFixLimit(t *testing.T) {
	e := newEngine(t, []*rule.Rule{fooToBar()}, WithFix(true), WithMaxFixPasses(1))

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte(fooSource))
	require.NoError(t, err)
	assert.Equal(t, report.StatusOK, res.Status)
	assert.Equal(t, 2, res.Passes)
	assert.Empty(t, res.Violations)
	assert.Equal(t, "bar = 1\nprint(bar)\nbar()\n", string(res.FixedSource))
}

func TestLintSource_CustomFixLimit(t *testing.T) {
	grow := replaceRule("grow", `((identifier) @id (#match? @id "^foo"))`, func(s string) string { return s + "_x" })
	e := newEngine(t, []*rule.Rule{grow}, WithFix(true), WithMaxFixPasses(3))

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte("foo = 1\n"))
	require.NoError(t, err)
	assert.Equal(t, report.StatusFixLimitReached, res.Status)
	assert.Equal(t, 4, res.Passes)
	assert.Equal(t, 3, res.FixesApplied)
	assert.Equal(t, "foo_x_x_x = 1\n", string(res.FixedSource))
}

func TestLintSource_SingleFixPass(t *testing.T) {
	grow := replaceRule("grow", `((identifier) @id (#match? @id "^foo"))`, func(s string) string { return s + "_x" })
	opts := DefaultOptions()
	opts.Fix = true
	opts.SingleFixPass = true
	e := newEngine(t, []*rule.Rule{grow}, WithOptions(opts))

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte("foo = 1\n"))
	require.NoError(t, err)
	assert.Equal(t, report.StatusOK, res.Status)
	assert.Equal(t, 1, res.Passes)
	assert.Equal(t, "foo_x = 1\n", string(res.FixedSource))
	assert.Empty(t, res.Violations)
	assert.Len(t, res.Fixed, 1)
}

func TestLintSource_OverlappingFixesPreferRegistrationOrder(t *testing.T) {
	first := replaceRule("first", `((identifier) @id (#eq? @id "foo"))`, func(string) string { return "aaa" })
	second := replaceRule("second", `((identifier) @id (#eq? @id "foo"))`, func(string) string { return "bbb" })
	e := newEngine(t, []*rule.Rule{first, second}, WithFix(true))

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte("foo = 1\n"))
	require.NoError(t, err)

	assert.Equal(t, "aaa = 1\n", string(res.FixedSource))
	assert.Equal(t, 1, res.FixesApplied)
	require.Len(t, res.Fixed, 1)
	assert.Equal(t, "first", res.Fixed[0].RuleID)
	assert.Empty(t, res.Violations)
}

func TestLintSource_NonFixableRuleFixIgnored(t *testing.T) {
	r := fooToBar()
	r.Fixable = false
	e := newEngine(t, []*rule.Rule{r}, WithFix(true))

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte(fooSource))
	require.NoError(t, err)
	assert.Len(t, res.Violations, 3)
	for _, v := range res.Violations {
		assert.Nil(t, v.Fix)
	}
	assert.Zero(t, res.FixesApplied)
	assert.Nil(t, res.FixedSource)
}

func TestLintSource_FixBreakingSyntaxIsReverted(t *testing.T) {
	breaker := replaceRule("breaker", `((identifier) @id (#eq? @id "foo"))`, func(string) string { return "(" })
	e := newEngine(t, []*rule.Rule{breaker}, WithFix(true))

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte("x = foo\n"))
	require.NoError(t, err)

	assert.Equal(t, report.StatusFixReverted, res.Status)
	assert.Zero(t, res.FixesApplied)
	assert.Empty(t, res.Fixed)
	assert.Nil(t, res.FixedSource)
	require.Len(t, res.Violations, 1)
	assert.False(t, res.Violations[0].FixApplied)
	assert.NotEmpty(t, res.Error)
}

func TestLintSource_ParseFailure(t *testing.T) {
	e := newEngine(t, []*rule.Rule{fooToBar()})

	res, err := e.LintSource(context.Background(), "bad.py", python(t, e), []byte("def (:\n  foo\n"))
	require.NoError(t, err)
	assert.Equal(t, report.StatusParseFailed, res.Status)
	assert.Empty(t, res.Violations)
	assert.NotEmpty(t, res.Error)
}

func TestLintSource_AllowSyntaxErrors(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowSyntaxErrors = true
	e := newEngine(t, []*rule.Rule{fooToBar()}, WithOptions(opts))

	res, err := e.LintSource(context.Background(), "bad.py", python(t, e), []byte("def (:\nfoo = 1\n"))
	require.NoError(t, err)
	assert.Equal(t, report.StatusOK, res.Status)
}

// =============================================================================
// Listener Dispatch
// =============================================================================

func TestLintSource_KindExitAfterDescendants(t *testing.T) {
	var events []string
	name := func(c *rule.Context, m rule.Match) string {
		return c.Text(m.Node.ChildByFieldName("name"))
	}
	r := &rule.Rule{
		ID:        "trace-functions",
		Languages: []string{language.Python},
		Listeners: []rule.Listener{
			{Kind: "function_definition", Handle: func(c *rule.Context, m rule.Match) error {
				events = append(events, "enter:"+name(c, m))
				return nil
			}},
			{Kind: "function_definition:exit", Handle: func(c *rule.Context, m rule.Match) error {
				assert.True(t, m.Exit)
				events = append(events, "exit:"+name(c, m))
				return nil
			}},
			{Query: `(identifier) @id`, Handle: func(c *rule.Context, m rule.Match) error {
				events = append(events, "id:"+c.Text(m.Node))
				return nil
			}},
		},
	}
	e := newEngine(t, []*rule.Rule{r})
	src := "def outer():\n    def inner():\n        pass\n    return x\n"

	_, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"enter:outer", "id:outer",
		"enter:inner", "id:inner", "exit:inner",
		"id:x", "exit:outer",
	}, events)
}

// defTracker emits def-enter and def-leave around Python function
// definitions, and panics on identifiers named "boom".
type defTracker struct{}

func (defTracker) EnterNode(n *sitter.Node) []string {
	if n.Type() == "function_definition" {
		return []string{"def-enter"}
	}
	return nil
}

func (defTracker) LeaveNode(n *sitter.Node) []string {
	if n.Type() == "function_definition" {
		return []string{"def-leave", "undeclared"}
	}
	return nil
}

type boomTracker struct{ file *filectx.File }

func (b boomTracker) EnterNode(n *sitter.Node) []string {
	if n.Type() == "identifier" && b.file.Text(n) == "boom" {
		panic("emitter exploded")
	}
	if n.Type() == "identifier" {
		return []string{"ident"}
	}
	return nil
}

func (boomTracker) LeaveNode(*sitter.Node) []string { return nil }

func newEngineWithEmitters(t *testing.T, emitters []*rule.EmitterFactory, rules []*rule.Rule, opts ...Option) *Engine {
	t.Helper()
	set := registry.NewRuleSet(language.Builtin(), registry.WithLogger(quiet))
	for _, em := range emitters {
		require.NoError(t, set.RegisterEmitter(em), em.Name)
	}
	for _, r := range rules {
		require.NoError(t, set.Register(r), r.ID)
	}
	return New(set, append([]Option{WithLogger(quiet)}, opts...)...)
}

func TestLintSource_EmitterEvents(t *testing.T) {
	defs := &rule.EmitterFactory{
		Name:      "defs",
		Languages: []string{language.Python},
		Events:    []string{"def-enter", "def-leave"},
		New:       func(*filectx.File) rule.Emitter { return defTracker{} },
	}
	var events []string
	name := func(c *rule.Context, m rule.Match) string {
		return c.Text(m.Node.ChildByFieldName("name"))
	}
	r := &rule.Rule{
		ID:        "trace-defs",
		Languages: []string{language.Python},
		Listeners: []rule.Listener{
			{Event: "defs/def-leave", Handle: func(c *rule.Context, m rule.Match) error {
				assert.True(t, m.Exit)
				assert.Equal(t, "def-leave", m.Captures[0].Name)
				events = append(events, "leave:"+name(c, m))
				return nil
			}},
			{Query: `(identifier) @id`, Handle: func(c *rule.Context, m rule.Match) error {
				events = append(events, "id:"+c.Text(m.Node))
				return nil
			}},
			{Event: "defs/def-enter", Handle: func(c *rule.Context, m rule.Match) error {
				assert.False(t, m.Exit)
				events = append(events, "enter:"+name(c, m))
				return nil
			}},
		},
	}
	e := newEngineWithEmitters(t, []*rule.EmitterFactory{defs}, []*rule.Rule{r})
	src := "def outer():\n    def inner():\n        pass\n    return x\n"

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte(src))
	require.NoError(t, err)
	assert.Empty(t, res.Faults)
	assert.Equal(t, []string{
		"enter:outer", "id:outer",
		"enter:inner", "id:inner", "leave:inner",
		"id:x", "leave:outer",
	}, events)
}

func TestLintSource_EmitterOnlyRule(t *testing.T) {
	defs := &rule.EmitterFactory{
		Name:   "defs",
		Events: []string{"def-enter", "def-leave"},
		New:    func(*filectx.File) rule.Emitter { return defTracker{} },
	}
	r := &rule.Rule{
		ID:        "no-defs",
		Languages: []string{language.Python},
		Listeners: []rule.Listener{{Event: "defs/def-enter", Handle: func(c *rule.Context, m rule.Match) error {
			c.ReportNode(m.Node, "function", nil)
			return nil
		}}},
	}
	e := newEngineWithEmitters(t, []*rule.EmitterFactory{defs}, []*rule.Rule{r})

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte("def f():\n    pass\n"))
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, 1, res.Violations[0].Range.Start.Line)
}

func TestLintSource_EmitterPanicIsAFault(t *testing.T) {
	boom := &rule.EmitterFactory{
		Name:   "boom",
		Events: []string{"ident"},
		New:    func(f *filectx.File) rule.Emitter { return boomTracker{file: f} },
	}
	var seen []string
	listener := &rule.Rule{
		ID:        "idents",
		Languages: []string{language.Python},
		Listeners: []rule.Listener{{Event: "boom/ident", Handle: func(c *rule.Context, m rule.Match) error {
			seen = append(seen, c.Text(m.Node))
			return nil
		}}},
	}
	e := newEngineWithEmitters(t, []*rule.EmitterFactory{boom}, []*rule.Rule{fooToBar(), listener})

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte("a = 1\nboom = 2\nfoo = 3\n"))
	require.NoError(t, err)
	assert.Equal(t, report.StatusOK, res.Status)
	assert.Equal(t, []string{"a"}, seen, "the emitter stops after it panics")
	require.Len(t, res.Faults, 1)
	assert.Equal(t, "emitter:boom", res.Faults[0].RuleID)
	assert.True(t, res.Faults[0].Panic)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "replace-foo", res.Violations[0].RuleID)
}

func TestLintSource_ProvidedValuesAndEnvironment(t *testing.T) {
	type banned struct{ name string }
	var builds atomic.Int32
	build := func(f *filectx.File) banned {
		builds.Add(1)
		s, _ := f.Environment["banned"].(string)
		return banned{name: s}
	}
	bannedRule := func(id string) *rule.Rule {
		return &rule.Rule{
			ID:        id,
			Languages: []string{language.Python},
			Listeners: []rule.Listener{{Query: `(identifier) @id`, Handle: func(c *rule.Context, m rule.Match) error {
				if c.Text(m.Node) == rule.Retrieve(c, build).name {
					c.ReportNode(m.Node, "banned", nil)
				}
				return nil
			}}},
		}
	}
	e := newEngine(t, []*rule.Rule{bannedRule("first"), bannedRule("second")}, WithEnvironment(map[string]any{"banned": "foo"}))

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte(fooSource))
	require.NoError(t, err)
	assert.Len(t, res.Violations, 6)
	assert.Equal(t, int32(1), builds.Load(), "one build per pass, shared by both rules")

	_, err = e.LintSource(context.Background(), "b.py", python(t, e), []byte(fooSource))
	require.NoError(t, err)
	assert.Equal(t, int32(2), builds.Load(), "each file gets its own value")

	plain := newEngine(t, []*rule.Rule{bannedRule("first")})
	res, err = plain.LintSource(context.Background(), "a.py", python(t, plain), []byte(fooSource))
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
}

func TestLintSource_PerCaptureListener(t *testing.T) {
	var got []string
	r := &rule.Rule{
		ID:        "params",
		Languages: []string{language.Python},
		Listeners: []rule.Listener{{
			Query:   `(parameters (identifier) @param)`,
			Capture: "param",
			Handle: func(c *rule.Context, m rule.Match) error {
				got = append(got, c.Text(m.Node))
				return nil
			},
		}},
	}
	e := newEngine(t, []*rule.Rule{r})

	_, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte("def f(a, b, c):\n    pass\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestLintSource_RuleFaultsAreIsolated(t *testing.T) {
	var panics atomic.Int32
	boom := &rule.Rule{
		ID:        "boom",
		Languages: []string{language.Python},
		Listeners: []rule.Listener{{Query: `(identifier) @id`, Handle: func(*rule.Context, rule.Match) error {
			panics.Add(1)
			panic("kaboom")
		}}},
	}
	failing := &rule.Rule{
		ID:        "failing",
		Languages: []string{language.Python},
		Listeners: []rule.Listener{{Query: `(identifier) @id`, Handle: func(*rule.Context, rule.Match) error {
			return fmt.Errorf("cannot handle")
		}}},
	}
	e := newEngine(t, []*rule.Rule{fooToBar(), boom, failing})

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte(fooSource))
	require.NoError(t, err)

	assert.Equal(t, report.StatusOK, res.Status)
	assert.Len(t, res.Violations, 3)
	assert.Equal(t, int32(1), panics.Load(), "a faulted rule is disabled for the rest of the file")
	require.Len(t, res.Faults, 2)
	assert.Equal(t, "boom", res.Faults[0].RuleID)
	assert.True(t, res.Faults[0].Panic)
	assert.Equal(t, "failing", res.Faults[1].RuleID)
	assert.Contains(t, res.Faults[1].Message, "cannot handle")
}

func TestLintSource_ReportedRangesAreClamped(t *testing.T) {
	wild := &rule.Rule{
		ID:        "wild",
		Languages: []string{language.Python},
		Listeners: []rule.Listener{{Query: `(module) @m`, Handle: func(c *rule.Context, m rule.Match) error {
			c.Report(rule.Violation{Message: "past the end", Range: filectx.Range{StartByte: 500, EndByte: 900}})
			c.Report(rule.Violation{Message: "inverted", Range: filectx.Range{StartByte: 4, EndByte: 2}})
			return nil
		}}},
	}
	e := newEngine(t, []*rule.Rule{wild})
	src := "x = 1\n"

	res, err := e.LintSource(context.Background(), "a.py", python(t, e), []byte(src))
	require.NoError(t, err)
	require.Len(t, res.Violations, 2)

	byMsg := map[string]rule.Violation{}
	for _, v := range res.Violations {
		byMsg[v.Message] = v
	}

	end := byMsg["past the end"].Range
	assert.Equal(t, len(src), end.StartByte)
	assert.Equal(t, len(src), end.EndByte)
	assert.Equal(t, end.Start, end.End)
	assert.GreaterOrEqual(t, end.Start.Line, 1)
	assert.GreaterOrEqual(t, end.Start.Column, 1)

	inv := byMsg["inverted"].Range
	assert.Equal(t, 4, inv.StartByte)
	assert.Equal(t, 4, inv.EndByte)
	assert.Equal(t, filectx.Position{Line: 1, Column: 5}, inv.Start)
}

type idCounter struct{ n int }

func TestRun_StateIsPerFile(t *testing.T) {
	var created atomic.Int32
	r := &rule.Rule{
		ID:        "count-ids",
		Languages: []string{language.Python},
		Severity:  rule.SeverityInfo,
		NewState: func() any {
			created.Add(1)
			return &idCounter{}
		},
		Listeners: []rule.Listener{{Query: `(identifier) @id`, Handle: func(c *rule.Context, _ rule.Match) error {
			rule.StateOf[*idCounter](c).n++
			return nil
		}}},
		OnFileEnd: func(c *rule.Context) error {
			c.ReportRange(0, 0, fmt.Sprintf("%d identifiers", rule.StateOf[*idCounter](c).n), nil)
			return nil
		},
	}
	e := newEngine(t, []*rule.Rule{r}, WithWorkers(2))
	paths := writeFiles(t, map[string]string{"a.py": "a = b\n", "b.py": "x = y + z\n"})

	rep, err := e.Run(context.Background(), paths)
	require.NoError(t, err)

	assert.Equal(t, int32(2), created.Load())
	a := resultFor(t, rep, "a.py")
	require.Len(t, a.Violations, 1)
	assert.Equal(t, "2 identifiers", a.Violations[0].Message)
	b := resultFor(t, rep, "b.py")
	require.Len(t, b.Violations, 1)
	assert.Equal(t, "3 identifiers", b.Violations[0].Message)
}

// =============================================================================
// Runs
// =============================================================================

func TestRun_DeterministicAcrossWorkerCounts(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 12; i++ {
		files[fmt.Sprintf("f%02d.py", i)] = strings.Repeat("foo = foo + 1\n", i%4+1)
	}
	files["broken.py"] = "def (:\n"
	files["notes.txt"] = "foo\n"
	paths := writeFiles(t, files)

	var reports []*report.RunReport
	for _, workers := range []int{1, 3, 8} {
		e := newEngine(t, []*rule.Rule{fooToBar()}, WithWorkers(workers), WithFix(true))
		rep, err := e.Run(context.Background(), paths)
		require.NoError(t, err)
		reports = append(reports, rep)
	}
	assert.Equal(t, reports[0], reports[1])
	assert.Equal(t, reports[0], reports[2])
	assert.Len(t, reports[0].Files, len(files))
}

func TestRun_ReportsEveryFile(t *testing.T) {
	paths := writeFiles(t, map[string]string{
		"good.py":   fooSource,
		"clean.py":  "x = 1\n",
		"broken.py": "def (:\n",
		"notes.txt": "foo\n",
	})
	e := newEngine(t, []*rule.Rule{fooToBar()})

	rep, err := e.Run(context.Background(), paths)
	require.NoError(t, err)

	assert.False(t, rep.Aborted)
	assert.Equal(t, 4, rep.Summary.Files)
	assert.Equal(t, 3, rep.Summary.Warnings)
	assert.Equal(t, 1, rep.Summary.ParseFailures)
	assert.Equal(t, 1, rep.Summary.FailedFiles)
	assert.Equal(t, report.StatusParseFailed, resultFor(t, rep, "broken.py").Status)
	assert.Equal(t, report.StatusFailed, resultFor(t, rep, "notes.txt").Status)
	assert.Len(t, resultFor(t, rep, "good.py").Violations, 3)
	assert.Empty(t, resultFor(t, rep, "clean.py").Violations)
}

func TestRun_FatalAbortsRun(t *testing.T) {
	fatal := &rule.Rule{
		ID:        "fatal",
		Languages: []string{language.Python},
		Listeners: []rule.Listener{{Query: `((identifier) @id (#eq? @id "explode"))`, Handle: func(*rule.Context, rule.Match) error {
			return fmt.Errorf("%w: storage gone", ErrFatal)
		}}},
	}
	paths := writeFiles(t, map[string]string{
		"a.py": "x = 1\n",
		"b.py": "explode()\n",
		"c.py": "y = 2\n",
	})
	e := newEngine(t, []*rule.Rule{fatal}, WithWorkers(1))

	rep, err := e.Run(context.Background(), sortedPaths(paths))
	require.Error(t, err)
	assert.True(t, IsFatal(err))

	require.NotNil(t, rep)
	assert.True(t, rep.Aborted)
	assert.Contains(t, rep.AbortReason, "storage gone")
	assert.Equal(t, report.StatusOK, resultFor(t, rep, "a.py").Status)
	assert.Equal(t, report.StatusSkipped, resultFor(t, rep, "b.py").Status)
	assert.Equal(t, report.StatusSkipped, resultFor(t, rep, "c.py").Status)
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	paths := writeFiles(t, map[string]string{"a.py": fooSource, "b.py": fooSource})
	e := newEngine(t, []*rule.Rule{fooToBar()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := e.Run(ctx, paths)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, rep.Aborted)
	assert.Equal(t, 2, rep.Summary.SkippedFiles)
}

func TestLintFile_Unsupported(t *testing.T) {
	e := newEngine(t, []*rule.Rule{fooToBar()})

	res, err := e.LintFile(context.Background(), "README.unknown")
	require.NoError(t, err)
	assert.Equal(t, report.StatusFailed, res.Status)
	assert.NotEmpty(t, res.Error)
}

func sortedPaths(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.Strings(out)
	return out
}
