// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package format renders lint reports.
package format

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/AleutianAI/sitterlint/services/lint/report"
)

// FormatType represents the type of output format.
type FormatType string

const (
	// FormatText is human-readable terminal output (default).
	FormatText FormatType = "text"

	// FormatJSON is full JSON output.
	FormatJSON FormatType = "json"

	// FormatMarkdown is table output for pull request comments.
	FormatMarkdown FormatType = "markdown"

	// FormatDiff is a unified diff of the fixes.
	FormatDiff FormatType = "diff"
)

// FormatVersion is the current version of the JSON report schema.
const FormatVersion = "1"

// ErrUnknownFormat is returned by New for unrecognized format names.
var ErrUnknownFormat = errors.New("unknown format")

// Formatter writes a run report.
type Formatter interface {
	// Format writes the report to w.
	Format(rep *report.RunReport, w io.Writer) error

	// Name returns the format name.
	Name() FormatType
}

// Options configure the formatters created by New.
type Options struct {
	// Color enables ANSI styling in text output.
	Color bool

	// Quiet limits text and markdown output to errors.
	Quiet bool

	// MaxRows caps markdown table rows; 0 uses the default.
	MaxRows int
}

// New returns the formatter for a format name.
//
// Inputs:
//
//	name - One of Types(). Empty selects text.
//	opts - Formatter options.
//
// Outputs:
//
//	Formatter - The formatter.
//	error - ErrUnknownFormat for unrecognized names.
func New(name string, opts Options) (Formatter, error) {
	switch FormatType(strings.ToLower(name)) {
	case "", FormatText:
		return NewTextFormatter(opts.Color, opts.Quiet), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatMarkdown:
		f := NewMarkdownFormatter()
		if opts.MaxRows > 0 {
			f.SetMaxRows(opts.MaxRows)
		}
		f.quiet = opts.Quiet
		return f, nil
	case FormatDiff:
		return NewDiffFormatter(), nil
	default:
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, name, strings.Join(Types(), ", "))
	}
}

// Types returns the supported format names, sorted.
func Types() []string {
	out := []string{string(FormatText), string(FormatJSON), string(FormatMarkdown), string(FormatDiff)}
	sort.Strings(out)
	return out
}
