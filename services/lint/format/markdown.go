// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/sitterlint/services/lint/report"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// MarkdownFormatter formats reports as Markdown tables.
type MarkdownFormatter struct {
	maxRows int
	quiet   bool
}

// NewMarkdownFormatter creates a new Markdown formatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{maxRows: 100}
}

// SetMaxRows sets the maximum number of violation rows.
func (f *MarkdownFormatter) SetMaxRows(max int) {
	f.maxRows = max
}

// Name returns the format name.
func (f *MarkdownFormatter) Name() FormatType {
	return FormatMarkdown
}

// Format writes the report as Markdown.
func (f *MarkdownFormatter) Format(rep *report.RunReport, w io.Writer) error {
	s := rep.Summary

	fmt.Fprintln(w, "## Lint Report")
	fmt.Fprintln(w)
	if rep.Aborted {
		fmt.Fprintf(w, "> **Run aborted:** %s\n\n", escapeCell(rep.AbortReason))
	}

	fmt.Fprintln(w, "| Files | Errors | Warnings | Infos | Fixed | Parse Failures | Rule Faults |")
	fmt.Fprintln(w, "|-------|--------|----------|-------|-------|----------------|-------------|")
	fmt.Fprintf(w, "| %d | %d | %d | %d | %d | %d | %d |\n\n",
		s.Files, s.Errors, s.Warnings, s.Infos, s.Fixed, s.ParseFailures, s.RuleFaults)

	type row struct {
		path string
		v    rule.Violation
	}
	var rows []row
	for _, file := range rep.Files {
		for _, v := range file.Violations {
			if f.quiet && v.Severity < rule.SeverityError {
				continue
			}
			rows = append(rows, row{path: file.Path, v: v})
		}
	}

	if len(rows) > 0 {
		fmt.Fprintln(w, "### Violations")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Location | Severity | Rule | Message |")
		fmt.Fprintln(w, "|----------|----------|------|---------|")

		shown := rows
		truncated := false
		if len(shown) > f.maxRows {
			shown = shown[:f.maxRows]
			truncated = true
		}
		for _, r := range shown {
			fmt.Fprintf(w, "| `%s:%d:%d` | %s | `%s` | %s |\n",
				r.path, r.v.Range.Start.Line, r.v.Range.Start.Column,
				severityBadge(r.v.Severity), r.v.RuleID, escapeCell(r.v.Message))
		}
		fmt.Fprintln(w)

		if truncated {
			fmt.Fprintf(w, "*Showing %d of %d violations. Use --format json for complete data.*\n\n",
				f.maxRows, len(rows))
		}
	}

	var problems []report.FileResult
	for _, file := range rep.Files {
		if file.Status != report.StatusOK {
			problems = append(problems, file)
		}
	}
	if len(problems) > 0 {
		fmt.Fprintln(w, "### File Problems")
		fmt.Fprintln(w)
		for _, file := range problems {
			detail := ""
			if file.Error != "" {
				detail = ": " + escapeCell(file.Error)
			}
			fmt.Fprintf(w, "- `%s` **%s**%s\n", file.Path, file.Status, detail)
		}
		fmt.Fprintln(w)
	}

	if len(s.RegistrationWarnings) > 0 {
		fmt.Fprintln(w, "### Rejected Rules")
		fmt.Fprintln(w)
		for _, warn := range s.RegistrationWarnings {
			fmt.Fprintf(w, "- %s\n", escapeCell(warn))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func severityBadge(s rule.Severity) string {
	switch s {
	case rule.SeverityError:
		return "🔴 error"
	case rule.SeverityWarning:
		return "🟡 warning"
	default:
		return "🔵 info"
	}
}

// escapeCell makes text safe inside a table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
