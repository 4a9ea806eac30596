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
	"log/slog"

	"github.com/AleutianAI/sitterlint/services/lint/filectx"
	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/report"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// passOutcome is the result of one lint pass over one buffer.
type passOutcome struct {
	src        []byte
	items      []collected
	faults     []report.RuleFault
	hadErrors  bool
	parseError error
}

// lintOnce parses src and runs one pass over it. The File Context and its
// tree are released before returning.
func (e *Engine) lintOnce(ctx context.Context, number int, path string, lang *language.Language, src []byte) (passOutcome, error) {
	out := passOutcome{src: src}

	tree, err := e.parser.Parse(ctx, lang, path, src)
	if err != nil {
		out.parseError = err
		return out, nil
	}
	file := filectx.New(path, lang, src, tree)
	file.Environment = e.opts.Environment
	defer file.Close()
	out.hadErrors = file.Root().HasError()

	matcher, err := e.cache.Get(ctx, e.rules, lang, e.activation)
	if err != nil {
		return out, &FatalError{Path: path, Err: err}
	}

	p := newPass(number, file, matcher, e.logger)
	items, err := p.run()
	if err != nil {
		return out, err
	}
	out.items = items
	out.faults = p.faults
	return out, nil
}

// lintBuffer runs the fix-and-relint loop over one buffer.
//
// Description:
//
//	Without fixing this is a single pass. With fixing, each pass applies
//	the accepted fixes and the next pass lints the new buffer, until a
//	pass applies nothing or MaxFixPasses passes have applied fixes. The
//	pass after the last fixing pass only reports: its violations are
//	located in the final buffer and their fixes are left unapplied. If a
//	fixed buffer no longer parses (or gains syntax errors the input did
//	not have), the pass that produced it is discarded and the last good
//	buffer kept.
func (e *Engine) lintBuffer(ctx context.Context, path string, lang *language.Language, src []byte) (report.FileResult, error) {
	res := report.FileResult{Path: path, Language: lang.Name, Status: report.StatusOK, Source: src}

	maxFixPasses := e.opts.MaxFixPasses
	if maxFixPasses <= 0 {
		maxFixPasses = DefaultMaxFixPasses
	}

	current := src
	var prev *passOutcome
	var prevFixed, prevApplied int
	originalHadErrors := false

	for number := 1; ; number++ {
		out, err := e.lintOnce(ctx, number, path, lang, current)
		if err != nil {
			return res, err
		}

		broken := out.parseError != nil || (number > 1 && out.hadErrors && !originalHadErrors)
		if broken {
			if number == 1 {
				res.Status = report.StatusParseFailed
				res.Error = out.parseError.Error()
				res.Passes = 1
				res.Violations = []rule.Violation{}
				return res, nil
			}
			// Discard the pass whose fixes broke the buffer.
			e.logger.Warn("fixes produced unparsable source; reverting last pass",
				slog.String("path", path),
				slog.Int("pass", number-1))
			for i := range prev.items {
				prev.items[i].v.FixApplied = false
			}
			res.FixesApplied -= prevApplied
			res.Fixed = res.Fixed[:len(res.Fixed)-prevFixed]
			res.Violations = violationsOf(prev.items)
			res.Status = report.StatusFixReverted
			res.Error = errString(out.parseError)
			setFixedSource(&res, prev.src)
			return res, nil
		}

		if number == 1 {
			originalHadErrors = out.hadErrors
		}
		res.Passes = number
		res.Faults = append(res.Faults, out.faults...)

		if !e.opts.Fix {
			res.Violations = violationsOf(out.items)
			return res, nil
		}

		if number > maxFixPasses {
			// Report-only pass after the fix budget is spent.
			res.Violations = violationsOf(out.items)
			if len(selectFixes(out.items)) > 0 {
				res.Status = report.StatusFixLimitReached
				e.logger.Warn("fix limit reached",
					slog.String("path", path),
					slog.Int("fix_passes", maxFixPasses))
			}
			setFixedSource(&res, current)
			return res, nil
		}

		next, applied := applyFixes(current, out.items)
		if applied == 0 {
			res.Violations = violationsOf(out.items)
			setFixedSource(&res, current)
			return res, nil
		}
		res.FixesApplied += applied

		fixedNow := appliedViolations(out.items)
		if e.opts.ReportFixed {
			res.Fixed = append(res.Fixed, fixedNow...)
		}

		if e.opts.SingleFixPass {
			res.Violations = unappliedViolations(out.items)
			setFixedSource(&res, next)
			return res, nil
		}

		prevApplied, prevFixed = applied, 0
		if e.opts.ReportFixed {
			prevFixed = len(fixedNow)
		}
		o := out
		prev = &o
		current = next
	}
}

func appliedViolations(items []collected) []rule.Violation {
	var out []rule.Violation
	for i := range items {
		if items[i].v.FixApplied {
			out = append(out, items[i].v)
		}
	}
	return out
}

func unappliedViolations(items []collected) []rule.Violation {
	out := []rule.Violation{}
	for i := range items {
		if !items[i].v.FixApplied {
			out = append(out, items[i].v)
		}
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return "fixed source introduced syntax errors"
	}
	return err.Error()
}

// lintContext detaches ctx from cancellation: a file that has started is
// always finished.
func lintContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// setFixedSource records buf as the fixed output when it differs from the
// original buffer.
func setFixedSource(res *report.FileResult, buf []byte) {
	if string(buf) != string(res.Source) {
		res.FixedSource = buf
	}
}
