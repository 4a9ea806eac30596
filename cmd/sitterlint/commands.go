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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/sitterlint/pkg/logging"
	"github.com/AleutianAI/sitterlint/services/lint/config"
	"github.com/AleutianAI/sitterlint/services/lint/engine"
	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/registry"
	"github.com/AleutianAI/sitterlint/services/lint/rules"
	"github.com/AleutianAI/sitterlint/services/lint/telemetry"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

// app holds the global flags and the state shared by subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Global flags.
	configFile string
	logLevel   string
	logJSON    bool
	logDir     string

	logger *logging.Logger
	cfg    *config.Config
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a.logger != nil {
		_ = a.logger.Close()
	}
	if err == nil {
		return ExitClean
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintf(stderr, "sitterlint: %v\n", exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintf(stderr, "sitterlint: %v\n", err)
	return ExitFailure
}

// newRootCmd builds the command tree.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sitterlint",
		Short: "Lint source files with tree-sitter query rules",
		Long: `sitterlint runs declarative lint rules, written as tree-sitter queries,
over Go, Python, JavaScript, TypeScript, Rust and more, and can apply
their fixes.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(a.logLevel)
			if err != nil {
				return usageError(err)
			}
			a.logger = logging.New(logging.Config{
				Level:   level,
				LogDir:  a.logDir,
				Service: "sitterlint",
				JSON:    a.logJSON,
				Output:  a.stderr,
			})
			slog.SetDefault(a.logger.Slog())
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Config file (default: nearest "+config.FileNames[0]+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "Log as JSON")
	root.PersistentFlags().StringVar(&a.logDir, "log-dir", "", "Also write JSON logs to this directory")

	root.AddCommand(
		newLintCmd(a),
		newRulesCmd(a),
		newLanguagesCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
	)
	return root
}

// loadConfig loads --config, or the configuration nearest to the first
// path argument.
func (a *app) loadConfig(paths []string) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configFile != "" {
		cfg, err = config.Load(a.configFile)
	} else {
		dir := "."
		if len(paths) > 0 {
			dir = paths[0]
			if info, statErr := os.Stat(dir); statErr == nil && !info.IsDir() {
				dir = filepath.Dir(dir)
			}
		}
		cfg, err = config.Discover(dir)
	}
	if err != nil {
		return usageError(err)
	}
	a.cfg = cfg
	a.logger.Debug("configuration loaded", slog.String("source", cfg.String()))
	return nil
}

// ruleSet registers the built-in rules and warns about configured rules
// that do not exist.
func (a *app) ruleSet() *registry.RuleSet {
	set := registry.NewRuleSet(language.Builtin(), registry.WithLogger(a.logger.Slog()))
	rules.RegisterAll(set)
	if a.cfg != nil {
		for _, id := range a.cfg.UnknownRules(func(id string) bool { _, ok := set.Lookup(id); return ok }) {
			a.logger.Warn("configured rule does not exist", slog.String("rule", id))
		}
	}
	return set
}

// newEngine builds an engine over set with the loaded configuration as
// activation. only, when non-empty, restricts the run to those rule ids.
func (a *app) newEngine(set *registry.RuleSet, opts engine.Options, only []string) (*engine.Engine, error) {
	var act registry.Activation = a.cfg
	if len(only) > 0 {
		ids := make(map[string]bool, len(only))
		for _, id := range only {
			if _, ok := set.Lookup(id); !ok {
				return nil, usageError(fmt.Errorf("unknown rule %q", id))
			}
			ids[id] = true
		}
		act = selectedRules{Activation: a.cfg, ids: ids}
	}
	return engine.New(set,
		engine.WithOptions(opts),
		engine.WithActivation(act),
		engine.WithLogger(a.logger.Slog())), nil
}

// selectedRules narrows an activation to an explicit set of rule ids.
// Severity and options still come from the wrapped activation.
type selectedRules struct {
	registry.Activation
	ids map[string]bool
}

func (s selectedRules) IsActive(ruleID string) bool { return s.ids[ruleID] }

// initTelemetry starts the OpenTelemetry exporters and returns a shutdown
// func that flushes them.
func (a *app) initTelemetry(ctx context.Context, cfg telemetry.Config) (func(), error) {
	cfg.ServiceVersion = version
	shutdown, err := telemetry.Init(ctx, cfg)
	if err != nil {
		return nil, usageError(fmt.Errorf("init telemetry: %w", err))
	}
	return func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}, nil
}
