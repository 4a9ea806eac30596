// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads .sitterlint.yml (or .sitterlint.toml) project
// configuration.
//
// A configuration selects rules and their severities, supplies rule
// options, excludes paths, and sets engine options:
//
//	workers: 4
//	allow-syntax-errors: false
//	fix:
//	  enabled: true
//	  max-passes: 10
//	ignore:
//	  - vendor/**
//	  - "*.min.js"
//	rules:
//	  no-lazy-static: error
//	  replace-foo-with-bar: off
//	  max-todo-comments:
//	    level: warning
//	    options:
//	      max: 3
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/sitterlint/services/lint/engine"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// FileNames are the configuration file names searched for, in order.
var FileNames = []string{".sitterlint.yml", ".sitterlint.yaml", ".sitterlint.toml"}

// LevelOff disables a rule.
const LevelOff = "off"

// ErrInvalidConfig indicates a configuration that failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the parsed configuration file.
type Config struct {
	// Workers is the worker pool size; 0 uses one per CPU.
	Workers int `yaml:"workers" validate:"gte=0,lte=1024"`

	// AllowSyntaxErrors lints files whose trees contain ERROR nodes.
	AllowSyntaxErrors bool `yaml:"allow-syntax-errors"`

	// Fix configures the fix-and-relint loop.
	Fix FixConfig `yaml:"fix"`

	// Ignore lists glob patterns of paths to skip.
	Ignore []string `yaml:"ignore" validate:"dive,required,glob"`

	// OnlyConfigured disables every rule not listed in Rules.
	OnlyConfigured bool `yaml:"only-configured"`

	// Rules maps rule ids to their settings.
	Rules map[string]RuleConfig `yaml:"rules" validate:"dive,keys,ruleid,endkeys"`

	// Environment is passed to every rule through Context.Environment.
	Environment map[string]any `yaml:"environment"`

	// Path is the file the configuration was loaded from.
	Path string `yaml:"-"`
}

// FixConfig configures fixing.
type FixConfig struct {
	Enabled     bool  `yaml:"enabled"`
	MaxPasses   int   `yaml:"max-passes" validate:"gte=0,lte=100"`
	SinglePass  bool  `yaml:"single-pass"`
	ReportFixed *bool `yaml:"report-fixed"`
}

// RuleConfig is one rule's settings.
//
// In YAML it is either a bare level ("error", "off") or a mapping with
// level and options.
type RuleConfig struct {
	Level   string         `yaml:"level" validate:"omitempty,oneof=off info warning warn error"`
	Options map[string]any `yaml:"options"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (r *RuleConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Level = strings.ToLower(strings.TrimSpace(node.Value))
		// false is accepted as off.
		if r.Level == "false" {
			r.Level = LevelOff
		}
		return nil
	}
	type plain RuleConfig
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	p.Level = strings.ToLower(strings.TrimSpace(p.Level))
	*r = RuleConfig(p)
	return nil
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{}
}

// =============================================================================
// ACTIVATION
// =============================================================================

// IsActive reports whether a rule runs.
func (c *Config) IsActive(ruleID string) bool {
	rc, ok := c.Rules[ruleID]
	if !ok {
		return !c.OnlyConfigured
	}
	return rc.Level != LevelOff
}

// Severity returns the configured severity of a rule, or def.
func (c *Config) Severity(ruleID string, def rule.Severity) rule.Severity {
	rc, ok := c.Rules[ruleID]
	if !ok || rc.Level == "" || rc.Level == LevelOff {
		return def
	}
	sev, err := rule.ParseSeverity(rc.Level)
	if err != nil {
		return def
	}
	return sev
}

// Options returns the configured options of a rule, or nil when none are
// configured. They are overlaid on the rule's defaults.
func (c *Config) Options(ruleID string) map[string]any {
	rc, ok := c.Rules[ruleID]
	if !ok || len(rc.Options) == 0 {
		return nil
	}
	return rc.Options
}

// UnknownRules returns configured rule ids not present in known, sorted.
func (c *Config) UnknownRules(known func(id string) bool) []string {
	var out []string
	for id := range c.Rules {
		if !known(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// ENGINE OPTIONS
// =============================================================================

// EngineOptions applies the configuration on top of base.
func (c *Config) EngineOptions(base engine.Options) engine.Options {
	opts := base
	if c.Workers > 0 {
		opts.Workers = c.Workers
	}
	if c.AllowSyntaxErrors {
		opts.AllowSyntaxErrors = true
	}
	if c.Fix.Enabled {
		opts.Fix = true
	}
	if c.Fix.MaxPasses > 0 {
		opts.MaxFixPasses = c.Fix.MaxPasses
	}
	if c.Fix.SinglePass {
		opts.SingleFixPass = true
	}
	if c.Fix.ReportFixed != nil {
		opts.ReportFixed = *c.Fix.ReportFixed
	}
	if len(c.Environment) > 0 {
		opts.Environment = c.Environment
	}
	return opts
}

// String summarizes where the configuration came from.
func (c *Config) String() string {
	if c.Path == "" {
		return "defaults"
	}
	return fmt.Sprintf("%s (%d rules configured)", c.Path, len(c.Rules))
}
