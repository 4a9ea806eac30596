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
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/sitterlint/services/lint/report"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// Palette for text output.
var (
	colorError   = lipgloss.Color("#E74C3C")
	colorWarning = lipgloss.Color("#F4D03F")
	colorInfo    = lipgloss.Color("#20B9B4")
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorMuted   = lipgloss.Color("#2C4A54")
)

// textStyles are resolved per writer so color detection follows the
// output stream, not the process stdout.
type textStyles struct {
	path    lipgloss.Style
	error   lipgloss.Style
	warning lipgloss.Style
	info    lipgloss.Style
	success lipgloss.Style
	muted   lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	r := lipgloss.NewRenderer(w)
	return textStyles{
		path:    r.NewStyle().Bold(true).Underline(true),
		error:   r.NewStyle().Foreground(colorError),
		warning: r.NewStyle().Foreground(colorWarning),
		info:    r.NewStyle().Foreground(colorInfo),
		success: r.NewStyle().Foreground(colorSuccess),
		muted:   r.NewStyle().Foreground(colorMuted),
	}
}

// TextFormatter formats reports for terminals.
type TextFormatter struct {
	color bool
	quiet bool
}

// NewTextFormatter creates a text formatter.
//
// Inputs:
//
//	color - Enables styling. See ColorEnabled.
//	quiet - Shows only error-severity violations.
func NewTextFormatter(color, quiet bool) *TextFormatter {
	return &TextFormatter{color: color, quiet: quiet}
}

// ColorEnabled reports whether w is a terminal that should get color.
// NO_COLOR disables color regardless.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Name returns the format name.
func (f *TextFormatter) Name() FormatType {
	return FormatText
}

// Format writes one block per file with problems followed by a summary.
func (f *TextFormatter) Format(rep *report.RunReport, w io.Writer) error {
	var styles textStyles
	if f.color {
		styles = newTextStyles(w)
	}
	paint := func(s lipgloss.Style, text string) string {
		if !f.color {
			return text
		}
		return s.Render(text)
	}

	for _, file := range rep.Files {
		violations := file.Violations
		if f.quiet {
			violations = errorsOnly(violations)
		}
		notes := fileNotes(file)
		if len(violations) == 0 && len(notes) == 0 {
			continue
		}

		fmt.Fprintln(w, paint(styles.path, file.Path))
		width := locationWidth(violations)
		for _, v := range violations {
			loc := fmt.Sprintf("%d:%d", v.Range.Start.Line, v.Range.Start.Column)
			sev := v.Severity.String()
			var sevStyle lipgloss.Style
			switch v.Severity {
			case rule.SeverityError:
				sevStyle = styles.error
			case rule.SeverityWarning:
				sevStyle = styles.warning
			default:
				sevStyle = styles.info
			}
			fmt.Fprintf(w, "  %s  %s  %s  %s\n",
				paint(styles.muted, fmt.Sprintf("%-*s", width, loc)),
				paint(sevStyle, fmt.Sprintf("%-7s", sev)),
				v.Message,
				paint(styles.muted, v.RuleID))
		}
		for _, n := range notes {
			fmt.Fprintf(w, "  %s\n", paint(styles.warning, n))
		}
		fmt.Fprintln(w)
	}

	s := rep.Summary
	problems := s.Errors + s.Warnings + s.Infos
	if f.quiet {
		problems = s.Errors
	}
	switch {
	case problems == 0:
		fmt.Fprintf(w, "%s No problems in %d %s\n", paint(styles.success, "✓"), s.Files, plural(s.Files, "file", "files"))
	default:
		mark := paint(styles.warning, "⚠")
		if s.Errors > 0 {
			mark = paint(styles.error, "✗")
		}
		fmt.Fprintf(w, "%s %d %s (%d %s, %d %s, %d %s)\n",
			mark, problems, plural(problems, "problem", "problems"),
			s.Errors, plural(s.Errors, "error", "errors"),
			s.Warnings, plural(s.Warnings, "warning", "warnings"),
			s.Infos, plural(s.Infos, "info", "infos"))
	}
	if s.FixesApplied > 0 {
		fmt.Fprintf(w, "  %d %s applied\n", s.FixesApplied, plural(s.FixesApplied, "fix", "fixes"))
	}
	for _, warn := range s.RegistrationWarnings {
		fmt.Fprintf(w, "  %s\n", paint(styles.warning, "rule rejected: "+warn))
	}
	if rep.Aborted {
		fmt.Fprintf(w, "%s\n", paint(styles.error, "run aborted: "+rep.AbortReason))
	}
	return nil
}

// fileNotes describes non-ok statuses and rule faults.
func fileNotes(file report.FileResult) []string {
	var notes []string
	switch file.Status {
	case report.StatusParseFailed:
		notes = append(notes, "parse failed: "+file.Error)
	case report.StatusFixLimitReached:
		notes = append(notes, fmt.Sprintf("fixes did not converge after %d passes", file.Passes))
	case report.StatusFixReverted:
		notes = append(notes, "last fix pass reverted: "+file.Error)
	case report.StatusFailed:
		notes = append(notes, "failed: "+file.Error)
	case report.StatusSkipped:
		notes = append(notes, "skipped")
	}
	for _, fault := range file.Faults {
		kind := "failed"
		if fault.Panic {
			kind = "panicked"
		}
		notes = append(notes, fmt.Sprintf("rule %s %s: %s", fault.RuleID, kind, fault.Message))
	}
	return notes
}

func errorsOnly(vs []rule.Violation) []rule.Violation {
	var out []rule.Violation
	for _, v := range vs {
		if v.Severity == rule.SeverityError {
			out = append(out, v)
		}
	}
	return out
}

func locationWidth(vs []rule.Violation) int {
	width := 0
	for _, v := range vs {
		if n := len(fmt.Sprintf("%d:%d", v.Range.Start.Line, v.Range.Start.Column)); n > width {
			width = n
		}
	}
	return width
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
