// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine executes lint rules over source files.
//
// # Pipeline
//
// For every file the engine parses the source into a File Context, fetches
// the merged matcher for the file's language from the registry cache,
// walks the tree once dispatching matches to rule listeners in source
// order, and collects the reported violations. With fixing enabled, the
// accepted fixes are applied and the result is parsed and linted again,
// up to Options.MaxFixPasses passes.
//
// Run spreads files across a worker pool and merges the per-file results
// into a deterministic RunReport: the same inputs produce the same report
// regardless of worker count.
//
// # Faults
//
// A rule that returns an error or panics is disabled for the rest of the
// file and recorded as a RuleFault; other rules are unaffected. A failure
// wrapping ErrFatal aborts the run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/registry"
	"github.com/AleutianAI/sitterlint/services/lint/report"
	"github.com/AleutianAI/sitterlint/services/lint/scheduler"
	"github.com/AleutianAI/sitterlint/services/lint/syntax"
)

// Engine lints files with a registered rule set.
//
// Thread Safety:
//
//	Safe for concurrent use once constructed. Rules, matchers and options
//	are shared read-only; all per-file state lives in the calling
//	goroutine.
type Engine struct {
	rules      *registry.RuleSet
	langs      *language.Registry
	parser     syntax.Parser
	cache      *registry.Cache
	activation registry.Activation
	opts       Options
	logger     *slog.Logger
	readFile   func(string) ([]byte, error)
}

// New creates an Engine for a rule set.
//
// Inputs:
//
//	rules - The registered rules. Their language registry is used to
//	        resolve file languages.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Engine - Ready to use.
func New(rules *registry.RuleSet, opts ...Option) *Engine {
	e := &Engine{
		rules:      rules,
		langs:      rules.Languages(),
		cache:      registry.NewCache(),
		activation: registry.AllActive{},
		opts:       DefaultOptions(),
		logger:     slog.Default(),
		readFile:   os.ReadFile,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parser == nil {
		e.parser = syntax.NewParser(syntax.WithTolerance(e.opts.AllowSyntaxErrors))
	}
	return e
}

// Options returns the engine's lint options.
func (e *Engine) Options() Options {
	return e.opts
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() *registry.RuleSet {
	return e.rules
}

// Cache returns the engine's matcher cache.
func (e *Engine) Cache() *registry.Cache {
	return e.cache
}

// Languages returns the language registry.
func (e *Engine) Languages() *language.Registry {
	return e.langs
}

// Activation returns the rule activation filter.
func (e *Engine) Activation() registry.Activation {
	return e.activation
}

// Rejected returns the registration errors of rules the rule set refused.
func (e *Engine) Rejected() []*registry.RegistrationError {
	return e.rules.Rejected()
}

// LintSource lints an in-memory buffer.
//
// Description:
//
//	Runs the full per-file pipeline, including the fix-and-relint loop
//	when fixing is enabled. Cancellation of ctx is not observed once the
//	file has started.
//
// Inputs:
//
//	ctx - Tracing context.
//	path - Path reported in results.
//	lang - The buffer's language.
//	src - The buffer. Not modified.
//
// Outputs:
//
//	report.FileResult - The result. Parse failures are reported here.
//	error - Non-nil only for failures wrapping ErrFatal.
func (e *Engine) LintSource(ctx context.Context, path string, lang *language.Language, src []byte) (report.FileResult, error) {
	ctx = lintContext(ctx)
	ctx, span := startFileSpan(ctx, lang.Name, path)
	defer span.End()
	start := time.Now()

	res, err := e.lintBuffer(ctx, path, lang, src)
	if err != nil {
		span.RecordError(err)
		recordFileMetrics(ctx, lang.Name, report.StatusFailed, time.Since(start), res)
		return res, err
	}
	setFileSpanResult(span, res)
	recordFileMetrics(ctx, lang.Name, res.Status, time.Since(start), res)

	e.logger.Debug("file linted",
		slog.String("path", path),
		slog.String("status", string(res.Status)),
		slog.Int("violations", len(res.Violations)),
		slog.Int("passes", res.Passes))
	return res, nil
}

// LintFile reads and lints one file, choosing the language from its path.
//
// Read failures and unsupported languages produce a StatusFailed result,
// not an error.
func (e *Engine) LintFile(ctx context.Context, path string) (report.FileResult, error) {
	lang, err := e.langs.ForPath(path)
	if err != nil {
		return report.FileResult{Path: path, Status: report.StatusFailed, Error: err.Error()}, nil
	}
	src, err := e.readFile(path)
	if err != nil {
		return report.FileResult{Path: path, Language: lang.Name, Status: report.StatusFailed, Error: fmt.Sprintf("read: %v", err)}, nil
	}
	return e.LintSource(ctx, path, lang, src)
}

// Run lints many files concurrently and returns the merged report.
//
// Description:
//
//	Files are processed by a pool of Options.Workers workers. Cancelling
//	ctx stops the run at the next file boundary; a fatal failure stops it
//	immediately. In both cases the returned report is marked aborted,
//	keeps every completed result, and lists unstarted files as skipped.
//
// Outputs:
//
//	*report.RunReport - Always non-nil.
//	error - The abort cause, nil for a complete run.
func (e *Engine) Run(ctx context.Context, paths []string) (*report.RunReport, error) {
	ctx, span := startRunSpan(ctx, len(paths))
	defer span.End()

	sched := scheduler.New(e.opts.Workers, scheduler.WithLogger(e.logger))
	agg := report.NewAggregator()

	e.logger.Info("lint run started",
		slog.Int("files", len(paths)),
		slog.Int("workers", sched.Workers()),
		slog.Int("rules", e.rules.Len()),
		slog.Bool("fix", e.opts.Fix))

	err := sched.Run(ctx, paths, e.LintFile, agg.Add)

	reason := ""
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = fmt.Sprintf("canceled: %v", err)
	default:
		reason = err.Error()
	}
	rep := agg.Finish(e.rules.Warnings(), reason)
	setRunSpanResult(span, rep)

	if rep.Aborted {
		e.logger.Error("lint run aborted",
			slog.String("reason", reason),
			slog.Int("completed", rep.Summary.Files-rep.Summary.SkippedFiles))
	} else {
		e.logger.Info("lint run finished",
			slog.Int("files", rep.Summary.Files),
			slog.Int("errors", rep.Summary.Errors),
			slog.Int("warnings", rep.Summary.Warnings),
			slog.Int("fixed", rep.Summary.Fixed))
	}
	return rep, err
}
