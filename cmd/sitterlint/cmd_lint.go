// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/sitterlint/services/lint/discover"
	"github.com/AleutianAI/sitterlint/services/lint/engine"
	"github.com/AleutianAI/sitterlint/services/lint/format"
	"github.com/AleutianAI/sitterlint/services/lint/report"
	"github.com/AleutianAI/sitterlint/services/lint/telemetry"
)

// lintFlags holds the flags of `sitterlint lint`.
type lintFlags struct {
	fix               bool
	dryRun            bool
	format            string
	rules             []string
	workers           int
	maxFixPasses      int
	singleFixPass     bool
	allowSyntaxErrors bool
	quiet             bool
}

func newLintCmd(a *app) *cobra.Command {
	f := &lintFlags{}
	cmd := &cobra.Command{
		Use:   "lint [path...]",
		Short: "Lint files and directories (default: current directory)",
		Long: `Lint files and directories. Directories are walked recursively, skipping
hidden directories, vendor, node_modules and the config's ignore globs.

Exit codes: 0 no error-severity problems, 1 error-severity problems
remain, 2 the run failed or was aborted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd, a, f, args)
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.fix, "fix", false, "Apply fixes and write them back to disk")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Compute fixes without writing them")
	fl.StringVarP(&f.format, "format", "f", string(format.FormatText), "Output format: "+strings.Join(format.Types(), ", "))
	fl.StringSliceVarP(&f.rules, "rule", "r", nil, "Run only these rule ids (repeatable)")
	fl.IntVarP(&f.workers, "workers", "w", 0, "Worker count (default: config, then CPU count)")
	fl.IntVar(&f.maxFixPasses, "max-fix-passes", engine.DefaultMaxFixPasses, "Maximum fix-applying passes per file")
	fl.BoolVar(&f.singleFixPass, "single-fix-pass", false, "Apply fixes once without relinting")
	fl.BoolVar(&f.allowSyntaxErrors, "allow-syntax-errors", false, "Lint files that contain syntax errors")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "Report errors only")
	return cmd
}

// lintOptions merges configuration and flags into engine options. Flags
// win when set explicitly.
func lintOptions(cmd *cobra.Command, a *app, f *lintFlags) engine.Options {
	opts := a.cfg.EngineOptions(engine.DefaultOptions())
	fl := cmd.Flags()
	if fl.Changed("workers") {
		opts.Workers = f.workers
	}
	if fl.Changed("max-fix-passes") {
		opts.MaxFixPasses = f.maxFixPasses
	}
	if f.singleFixPass {
		opts.SingleFixPass = true
	}
	if f.allowSyntaxErrors {
		opts.AllowSyntaxErrors = true
	}
	if f.fix || f.dryRun || format.FormatType(f.format) == format.FormatDiff {
		opts.Fix = true
	}
	return opts
}

func runLint(cmd *cobra.Command, a *app, f *lintFlags, args []string) error {
	ctx := cmd.Context()
	if len(args) == 0 {
		args = []string{"."}
	}
	f.format = strings.ToLower(f.format)
	if f.workers < 0 || f.maxFixPasses < 1 {
		return usageError(fmt.Errorf("--workers must be >= 0 and --max-fix-passes >= 1"))
	}
	if err := a.loadConfig(args); err != nil {
		return err
	}

	formatter, err := format.New(f.format, format.Options{
		Color: format.ColorEnabled(a.stdout),
		Quiet: f.quiet,
	})
	if err != nil {
		return usageError(err)
	}

	shutdown, err := a.initTelemetry(ctx, telemetry.DefaultConfig())
	if err != nil {
		return err
	}
	defer shutdown()

	set := a.ruleSet()
	opts := lintOptions(cmd, a, f)
	eng, err := a.newEngine(set, opts, f.rules)
	if err != nil {
		return err
	}

	files, err := discover.Files(ctx, args, discover.Options{Languages: set.Languages(), Ignore: a.cfg.Ignored})
	if err != nil {
		return usageError(err)
	}

	rep, runErr := eng.Run(ctx, files)

	// Fixes are written only when asked for, not when the diff format
	// turned fixing on for display.
	write := (f.fix || a.cfg.Fix.Enabled) && !f.dryRun && format.FormatType(f.format) != format.FormatDiff
	var writeErr error
	if write {
		writeErr = writeFixes(a, rep)
	}

	if err := formatter.Format(rep, a.stdout); err != nil {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("write report: %w", err)}
	}

	switch {
	case runErr != nil:
		return &ExitError{Code: ExitFailure}
	case writeErr != nil:
		return &ExitError{Code: ExitFailure, Err: writeErr}
	case rep.HasErrors():
		return &ExitError{Code: ExitViolations}
	}
	return nil
}

// writeFixes writes every changed buffer back to its file, keeping the
// file's permissions. It continues past failures and returns the first.
func writeFixes(a *app, rep *report.RunReport) error {
	var first error
	written := 0
	for i := range rep.Files {
		res := &rep.Files[i]
		if !res.Changed() {
			continue
		}
		if err := writeFile(res.Path, res.FixedSource); err != nil {
			a.logger.Error("writing fix failed", slog.String("path", res.Path), slog.String("error", err.Error()))
			if first == nil {
				first = fmt.Errorf("write %s: %w", res.Path, err)
			}
			continue
		}
		written++
	}
	a.logger.Info("fixes written", slog.Int("files", written))
	return first
}

func writeFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, info.Mode().Perm())
}
