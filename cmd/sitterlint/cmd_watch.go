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
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/sitterlint/services/lint/discover"
	"github.com/AleutianAI/sitterlint/services/lint/engine"
	"github.com/AleutianAI/sitterlint/services/lint/format"
	"github.com/AleutianAI/sitterlint/services/lint/report"
	"github.com/AleutianAI/sitterlint/services/lint/telemetry"
	"github.com/AleutianAI/sitterlint/services/lint/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		formatName string
		fix        bool
		ruleIDs    []string
	)
	cmd := &cobra.Command{
		Use:   "watch [dir...]",
		Short: "Lint, then re-lint files as they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 0 {
				args = []string{"."}
			}
			if err := a.loadConfig(args); err != nil {
				return err
			}
			formatter, err := format.New(formatName, format.Options{Color: format.ColorEnabled(a.stdout)})
			if err != nil {
				return usageError(err)
			}
			shutdown, err := a.initTelemetry(ctx, telemetry.DefaultConfig())
			if err != nil {
				return err
			}
			defer shutdown()

			set := a.ruleSet()
			opts := a.cfg.EngineOptions(engine.DefaultOptions())
			opts.Fix = fix || a.cfg.Fix.Enabled
			eng, err := a.newEngine(set, opts, ruleIDs)
			if err != nil {
				return err
			}

			var mu sync.Mutex
			emit := func(rep *report.RunReport) {
				mu.Lock()
				defer mu.Unlock()
				if opts.Fix {
					if err := writeFixes(a, rep); err != nil {
						a.logger.Error("writing fixes failed", slog.String("error", err.Error()))
					}
				}
				if err := formatter.Format(rep, a.stdout); err != nil {
					a.logger.Error("writing report failed", slog.String("error", err.Error()))
				}
			}

			files, err := discover.Files(ctx, args, discover.Options{Languages: set.Languages(), Ignore: a.cfg.Ignored})
			if err != nil {
				return usageError(err)
			}
			rep, err := eng.Run(ctx, files)
			emit(rep)
			if err != nil {
				return &ExitError{Code: ExitFailure}
			}

			w, err := watch.New(eng, emit, watch.Options{Ignore: a.cfg.Ignored, Logger: a.logger.Slog()}, watchRoots(args)...)
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: fmt.Errorf("create watcher: %w", err)}
			}
			defer w.Stop()
			if err := w.Start(ctx); err != nil {
				return &ExitError{Code: ExitFailure, Err: fmt.Errorf("start watcher: %w", err)}
			}
			fmt.Fprintf(a.stderr, "watching %s (Ctrl-C to stop)\n", strings.Join(args, ", "))

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", string(format.FormatText), "Output format: "+strings.Join(format.Types(), ", "))
	cmd.Flags().BoolVar(&fix, "fix", false, "Apply fixes and write them back to disk")
	cmd.Flags().StringSliceVarP(&ruleIDs, "rule", "r", nil, "Run only these rule ids (repeatable)")
	return cmd
}

// watchRoots maps path arguments to the directories to watch.
func watchRoots(args []string) []string {
	seen := make(map[string]bool)
	var roots []string
	for _, p := range args {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			p = filepath.Dir(p)
		}
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			roots = append(roots, p)
		}
	}
	return roots
}
