// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rule

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/sitterlint/services/lint/filectx"
)

// ReportFunc receives violations from a Context.
type ReportFunc func(v Violation)

// Context is what a rule's handlers see while one file is linted.
//
// Description:
//
//	One Context exists per (file, rule). It carries the file, the rule's
//	per-file state, its effective options and severity, and the report
//	callback into the collector.
//
// Thread Safety:
//
//	Not safe for concurrent use. Owned by the worker linting the file.
type Context struct {
	// File is the file being linted.
	File *filectx.File

	// Rule is the rule the context belongs to.
	Rule *Rule

	// State is the value returned by Rule.NewState, or nil.
	State any

	// Options are the effective rule options.
	Options map[string]any

	// Severity is the effective severity.
	Severity Severity

	report ReportFunc
}

// NewContext creates a Context. The engine calls this once per (file, rule).
func NewContext(file *filectx.File, r *Rule, severity Severity, options map[string]any, state any, report ReportFunc) *Context {
	if options == nil {
		options = r.DefaultOptions
	}
	return &Context{
		File:     file,
		Rule:     r,
		State:    state,
		Options:  options,
		Severity: severity,
		report:   report,
	}
}

// Language returns the file's language name.
func (c *Context) Language() string {
	if c.File == nil || c.File.Language == nil {
		return ""
	}
	return c.File.Language.Name
}

// Report records a violation. RuleID and Severity are filled in from the
// context. The range is clamped to the file and its positions recomputed
// by the collector.
func (c *Context) Report(v Violation) {
	v.RuleID = c.Rule.ID
	v.Severity = c.Severity
	if c.report != nil {
		c.report(v)
	}
}

// ReportNode reports a violation covering n.
func (c *Context) ReportNode(n *sitter.Node, message string, fix *Fix) {
	c.Report(Violation{Message: message, Range: c.File.Range(n), Fix: fix})
}

// ReportRange reports a violation covering a byte range.
func (c *Context) ReportRange(start, end int, message string, fix *Fix) {
	c.Report(Violation{Message: message, Range: c.File.RangeOf(start, end), Fix: fix})
}

// ReportMessage reports a violation using one of Rule.Messages.
func (c *Context) ReportMessage(n *sitter.Node, messageID string, data map[string]string, fix *Fix) {
	c.Report(Violation{
		Message:   c.Rule.Message(messageID, data),
		MessageID: messageID,
		Range:     c.File.Range(n),
		Fix:       fix,
	})
}

// Environment returns the run's environment settings, or nil.
func (c *Context) Environment() map[string]any {
	if c.File == nil {
		return nil
	}
	return c.File.Environment
}

// Retrieve returns the file's provided value of type T, building it with
// build on first use.
//
// Description:
//
//	Provided values are shared by every rule in the same pass and rebuilt
//	for each new buffer, so derived data (a symbol table, settings
//	decoded from Environment) is computed once per file rather than once
//	per rule.
//
// Example:
//
//	type scopes struct{ names map[string]bool }
//
//	s := rule.Retrieve(c, func(f *filectx.File) *scopes { return buildScopes(f) })
func Retrieve[T any](c *Context, build func(*filectx.File) T) T {
	return filectx.Provide(c.File, build)
}

// Text returns the source text of n.
func (c *Context) Text(n *sitter.Node) string {
	return c.File.Text(n)
}

// StateOf returns the context's state as S.
//
// Panics when the rule's NewState returns a different type; the panic is
// recorded as a fault of the rule.
func StateOf[S any](c *Context) S {
	s, ok := c.State.(S)
	if !ok {
		panic(fmt.Sprintf("rule %s: state has type %T", c.Rule.ID, c.State))
	}
	return s
}

// OptionInt returns an integer option or def.
//
// YAML decodes integers as int and JSON as float64; both are accepted.
func (c *Context) OptionInt(name string, def int) int {
	switch v := c.Options[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// OptionString returns a string option or def.
func (c *Context) OptionString(name, def string) string {
	if v, ok := c.Options[name].(string); ok {
		return v
	}
	return def
}

// OptionBool returns a boolean option or def.
func (c *Context) OptionBool(name string, def bool) bool {
	if v, ok := c.Options[name].(bool); ok {
		return v
	}
	return def
}

// OptionStrings returns a string-list option or def.
func (c *Context) OptionStrings(name string, def []string) []string {
	switch v := c.Options[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return def
	}
}
