// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package linttest runs table-driven tests for lint rules.
//
// Example:
//
//	func TestNoLazyStatic(t *testing.T) {
//		linttest.Run(t, rules.NoLazyStatic(), linttest.Tests{
//			Valid: []linttest.Valid{
//				{Code: "fn main() {}"},
//			},
//			Invalid: []linttest.Invalid{{
//				Code:   "lazy_static! { static ref X: u8 = 1; }",
//				Errors: []linttest.ExpectedError{{Message: "Prefer 'OnceCell::*::Lazy' to 'lazy_static!()'"}},
//			}},
//		})
//	}
//
// Valid cases must produce no violations. Invalid cases are linted with a
// single fix pass; the expected errors are compared with every violation
// (fixed or not) in source order, and Output with the fixed source.
package linttest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sitterlint/services/lint/engine"
	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/registry"
	"github.com/AleutianAI/sitterlint/services/lint/report"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// Valid is a case that must not produce violations.
type Valid struct {
	Code        string
	Language    string
	Options     map[string]any
	Environment map[string]any
}

// Invalid is a case that must produce violations.
type Invalid struct {
	Code        string
	Language    string
	Options     map[string]any
	Environment map[string]any

	// Errors are compared in order with the violations. When empty,
	// ErrorCount is checked instead.
	Errors     []ExpectedError
	ErrorCount int

	// Output is the expected source after one fix pass. Empty skips the
	// check unless NoOutput is set.
	Output string

	// NoOutput asserts that no violation carries a fix.
	NoOutput bool
}

// ExpectedError describes one expected violation. Zero fields are not
// checked. Lines and columns are 1-based.
type ExpectedError struct {
	Message   string
	MessageID string
	Line      int
	Column    int
	EndLine   int
	EndColumn int
}

// Tests groups the cases for one rule.
type Tests struct {
	Valid   []Valid
	Invalid []Invalid
}

// RuleTester runs rule tests.
type RuleTester struct {
	// Languages resolves case languages. Nil uses the built-in registry.
	Languages *language.Registry

	// Language is used for cases that name none, when the rule does not
	// have exactly one language.
	Language string

	// Emitters are registered before the rule.
	Emitters []*rule.EmitterFactory
}

// Run tests a rule with the default RuleTester.
func Run(t *testing.T, r *rule.Rule, tests Tests) {
	t.Helper()
	(&RuleTester{}).Run(t, r, tests)
}

// Run registers the rule and runs every case as a subtest.
func (rt *RuleTester) Run(t *testing.T, r *rule.Rule, tests Tests) {
	t.Helper()

	langs := rt.Languages
	if langs == nil {
		langs = language.Builtin()
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	set := registry.NewRuleSet(langs, registry.WithLogger(quiet))
	for _, em := range rt.Emitters {
		require.NoError(t, set.RegisterEmitter(em), "emitter %s failed to register", em.Name)
	}
	require.NoError(t, set.Register(r), "rule %s failed to register", r.ID)

	for i, tc := range tests.Valid {
		t.Run(fmt.Sprintf("valid/%d", i), func(t *testing.T) {
			lang := rt.language(t, set, r, tc.Language)
			e := engine.New(set, engine.WithLogger(quiet), engine.WithEnvironment(tc.Environment), engine.WithActivation(single{id: r.ID, options: tc.Options}))
			res, err := e.LintSource(context.Background(), "test"+firstExt(lang), lang, []byte(tc.Code))
			require.NoError(t, err)
			checkClean(t, res, tc.Code)
			assert.Empty(t, res.Violations, "valid case reported violations\ncode: %s", tc.Code)
		})
	}

	for i, tc := range tests.Invalid {
		t.Run(fmt.Sprintf("invalid/%d", i), func(t *testing.T) {
			if tc.Output != "" && !r.Fixable {
				t.Fatalf("rule %s: Output given for a rule that is not fixable", r.ID)
			}
			lang := rt.language(t, set, r, tc.Language)
			opts := engine.DefaultOptions()
			opts.Fix = true
			opts.SingleFixPass = true
			opts.ReportFixed = true
			opts.Environment = tc.Environment
			e := engine.New(set, engine.WithLogger(quiet), engine.WithOptions(opts), engine.WithActivation(single{id: r.ID, options: tc.Options}))

			res, err := e.LintSource(context.Background(), "test"+firstExt(lang), lang, []byte(tc.Code))
			require.NoError(t, err)
			checkClean(t, res, tc.Code)

			got := allViolations(res)
			want := len(tc.Errors)
			if want == 0 {
				want = tc.ErrorCount
			}
			require.Len(t, got, want, "violation count\ncode: %s\ngot: %s", tc.Code, describe(got))
			for j, exp := range tc.Errors {
				checkViolation(t, j, exp, got[j], tc.Code)
			}

			if tc.Output != "" {
				out := res.Source
				if res.FixedSource != nil {
					out = res.FixedSource
				}
				assert.Equal(t, tc.Output, string(out), "fixed output\ncode: %s", tc.Code)
			}
			if tc.NoOutput {
				for _, v := range got {
					assert.Nil(t, v.Fix, "unexpected fix at %d:%d", v.Range.Start.Line, v.Range.Start.Column)
				}
			}
		})
	}
}

func (rt *RuleTester) language(t *testing.T, set *registry.RuleSet, r *rule.Rule, name string) *language.Language {
	t.Helper()
	switch {
	case name != "":
	case len(r.Languages) == 1:
		name = r.Languages[0]
	case rt.Language != "":
		name = rt.Language
	default:
		t.Fatalf("rule %s: case needs a Language", r.ID)
	}
	lang, ok := set.Languages().ByName(name)
	require.True(t, ok, "unknown language %q", name)
	require.True(t, set.Supports(r.ID, name), "rule %s is not registered for %s", r.ID, name)
	return lang
}

func checkClean(t *testing.T, res report.FileResult, code string) {
	t.Helper()
	require.Equal(t, report.StatusOK, res.Status, "status %s: %s\ncode: %s", res.Status, res.Error, code)
	for _, f := range res.Faults {
		t.Errorf("rule %s faulted: %s", f.RuleID, f.Message)
	}
}

func checkViolation(t *testing.T, i int, exp ExpectedError, got rule.Violation, code string) {
	t.Helper()
	where := fmt.Sprintf("violation %d\ncode: %s", i, code)
	if exp.Message != "" {
		assert.Equal(t, exp.Message, got.Message, "message, %s", where)
	}
	if exp.MessageID != "" {
		assert.Equal(t, exp.MessageID, got.MessageID, "message id, %s", where)
	}
	if exp.Line != 0 {
		assert.Equal(t, exp.Line, got.Range.Start.Line, "line, %s", where)
	}
	if exp.Column != 0 {
		assert.Equal(t, exp.Column, got.Range.Start.Column, "column, %s", where)
	}
	if exp.EndLine != 0 {
		assert.Equal(t, exp.EndLine, got.Range.End.Line, "end line, %s", where)
	}
	if exp.EndColumn != 0 {
		assert.Equal(t, exp.EndColumn, got.Range.End.Column, "end column, %s", where)
	}
}

// allViolations merges fixed and remaining violations in source order.
func allViolations(res report.FileResult) []rule.Violation {
	all := append(append([]rule.Violation(nil), res.Fixed...), res.Violations...)
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i].Range, all[j].Range
		if a.StartByte != b.StartByte {
			return a.StartByte < b.StartByte
		}
		return a.EndByte < b.EndByte
	})
	return all
}

func describe(vs []rule.Violation) string {
	out := ""
	for _, v := range vs {
		out += fmt.Sprintf("\n  %d:%d %s", v.Range.Start.Line, v.Range.Start.Column, v.Message)
	}
	return out
}

func firstExt(lang *language.Language) string {
	if len(lang.Extensions) > 0 {
		return lang.Extensions[0]
	}
	return ""
}

// single activates one rule at error severity with the case's options.
type single struct {
	id      string
	options map[string]any
}

func (s single) IsActive(id string) bool { return id == s.id }

func (s single) Severity(string, rule.Severity) rule.Severity { return rule.SeverityError }

func (s single) Options(string) map[string]any { return s.options }
