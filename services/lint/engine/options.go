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
	"log/slog"

	"github.com/AleutianAI/sitterlint/services/lint/registry"
	"github.com/AleutianAI/sitterlint/services/lint/syntax"
)

// DefaultMaxFixPasses bounds the fix-and-relint loop.
const DefaultMaxFixPasses = 10

// Options controls how files are linted.
type Options struct {
	// Fix enables applying fixes and relinting the result.
	Fix bool

	// MaxFixPasses is the maximum number of passes that apply fixes. One
	// more report-only pass lints the final buffer.
	MaxFixPasses int

	// SingleFixPass applies fixes once without relinting.
	SingleFixPass bool

	// ReportFixed keeps violations resolved in earlier passes in
	// FileResult.Fixed.
	ReportFixed bool

	// AllowSyntaxErrors lints trees that contain ERROR nodes.
	AllowSyntaxErrors bool

	// Workers is the scheduler pool size; 0 uses runtime.NumCPU().
	Workers int

	// Environment is exposed to rules through Context.Environment. It is
	// shared by every file and must not be modified during a run.
	Environment map[string]any
}

// DefaultOptions returns lint-only options.
func DefaultOptions() Options {
	return Options{
		MaxFixPasses: DefaultMaxFixPasses,
		ReportFixed:  true,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithOptions replaces the lint options.
func WithOptions(opts Options) Option {
	return func(e *Engine) {
		e.opts = opts
	}
}

// WithFix enables or disables fixing.
func WithFix(fix bool) Option {
	return func(e *Engine) {
		e.opts.Fix = fix
	}
}

// WithMaxFixPasses sets the fix pass limit.
func WithMaxFixPasses(n int) Option {
	return func(e *Engine) {
		e.opts.MaxFixPasses = n
	}
}

// WithEnvironment sets the environment rules see.
func WithEnvironment(env map[string]any) Option {
	return func(e *Engine) {
		e.opts.Environment = env
	}
}

// WithWorkers sets the scheduler pool size.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.opts.Workers = n
	}
}

// WithActivation sets the rule activation filter.
func WithActivation(act registry.Activation) Option {
	return func(e *Engine) {
		if act != nil {
			e.activation = act
		}
	}
}

// WithParser replaces the parser provider.
func WithParser(p syntax.Parser) Option {
	return func(e *Engine) {
		if p != nil {
			e.parser = p
		}
	}
}

// WithCache shares a matcher cache between engines.
func WithCache(c *registry.Cache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}
