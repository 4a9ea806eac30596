// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report defines lint results and merges them into a run report.
//
// FileResult is produced by one worker for one file. Ownership passes to
// the Aggregator when the worker hands it off; the Aggregator then orders
// results by path and computes summary counts. Nothing in a report depends
// on timing or scheduling, so the same inputs always serialize to the same
// bytes.
package report

import (
	"sort"

	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// Status is the outcome of linting one file.
type Status string

const (
	// StatusOK means linting (and fixing, if enabled) completed.
	StatusOK Status = "ok"

	// StatusParseFailed means the file could not be parsed; it has no
	// violations.
	StatusParseFailed Status = "parse_failed"

	// StatusFixLimitReached means fixes were still being applied when the
	// pass limit was hit. Violations are those of the last pass.
	StatusFixLimitReached Status = "fix_limit_reached"

	// StatusFixReverted means a pass produced a buffer that no longer
	// parses; that pass was discarded.
	StatusFixReverted Status = "fix_reverted"

	// StatusFailed means the file could not be processed (read error,
	// unsupported language, or a crash outside any rule).
	StatusFailed Status = "failed"

	// StatusSkipped means the run stopped before the file was started.
	StatusSkipped Status = "skipped"
)

// RuleFault records a rule that failed on a file.
type RuleFault struct {
	// RuleID is the faulting rule.
	RuleID string `json:"rule"`

	// Message is the error or panic value.
	Message string `json:"message"`

	// Panic is set when the rule panicked rather than returning an error.
	Panic bool `json:"panic,omitempty"`

	// Pass is the 1-based lint pass in which the fault happened.
	Pass int `json:"pass"`
}

// FileResult is the result of linting one file.
type FileResult struct {
	// Path is the file path as given to the engine.
	Path string `json:"path"`

	// Language is the language name, empty if it could not be determined.
	Language string `json:"language,omitempty"`

	// Status is the outcome.
	Status Status `json:"status"`

	// Violations are ordered by (start offset, rule id).
	Violations []rule.Violation `json:"violations"`

	// Fixed are violations resolved by fixes in earlier passes, in the
	// order their passes ran.
	Fixed []rule.Violation `json:"fixed,omitempty"`

	// Passes is the number of lint passes run.
	Passes int `json:"passes"`

	// FixesApplied counts applied fixes across all passes.
	FixesApplied int `json:"fixes_applied"`

	// Faults lists rule faults in the order they occurred.
	Faults []RuleFault `json:"faults,omitempty"`

	// Error describes a parse failure or processing failure.
	Error string `json:"error,omitempty"`

	// Source is the buffer that was linted first.
	Source []byte `json:"-"`

	// FixedSource is the final buffer when fixes changed it, else nil.
	FixedSource []byte `json:"-"`
}

// Changed reports whether fixes produced a different buffer.
func (r *FileResult) Changed() bool {
	return r.FixedSource != nil && string(r.FixedSource) != string(r.Source)
}

// Count returns the number of remaining violations at a severity.
func (r *FileResult) Count(sev rule.Severity) int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == sev {
			n++
		}
	}
	return n
}

// Summary holds run-wide counts.
type Summary struct {
	Files           int `json:"files"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Infos           int `json:"infos"`
	Fixed           int `json:"fixed"`
	FixesApplied    int `json:"fixes_applied"`
	ParseFailures   int `json:"parse_failures"`
	FixLimitReached int `json:"fix_limit_reached"`
	FixReverted     int `json:"fix_reverted"`
	RuleFaults      int `json:"rule_faults"`
	FailedFiles     int `json:"failed_files"`
	SkippedFiles    int `json:"skipped_files"`

	// RegistrationWarnings describe rules rejected at registration.
	RegistrationWarnings []string `json:"registration_warnings,omitempty"`
}

// RunReport is the result of a whole run.
type RunReport struct {
	// Files are ordered by path.
	Files []FileResult `json:"files"`

	// Summary holds the counts.
	Summary Summary `json:"summary"`

	// Aborted is set when the run stopped early; Files is then partial
	// and unstarted files have StatusSkipped.
	Aborted bool `json:"aborted,omitempty"`

	// AbortReason explains why the run stopped.
	AbortReason string `json:"abort_reason,omitempty"`
}

// HasErrors reports whether any error-severity violation remains.
func (r *RunReport) HasErrors() bool {
	return r.Summary.Errors > 0
}

// Summarize computes the counts for a set of file results.
func Summarize(files []FileResult) Summary {
	var s Summary
	s.Files = len(files)
	for i := range files {
		f := &files[i]
		s.Errors += f.Count(rule.SeverityError)
		s.Warnings += f.Count(rule.SeverityWarning)
		s.Infos += f.Count(rule.SeverityInfo)
		s.Fixed += len(f.Fixed)
		s.FixesApplied += f.FixesApplied
		s.RuleFaults += len(f.Faults)

		switch f.Status {
		case StatusParseFailed:
			s.ParseFailures++
		case StatusFixLimitReached:
			s.FixLimitReached++
		case StatusFixReverted:
			s.FixReverted++
		case StatusFailed:
			s.FailedFiles++
		case StatusSkipped:
			s.SkippedFiles++
		}
	}
	return s
}

// Aggregator merges file results into a RunReport.
//
// Thread Safety:
//
//	Not safe for concurrent use. The scheduler calls Add from a single
//	goroutine.
type Aggregator struct {
	files []FileResult
	seen  map[string]int
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{seen: make(map[string]int)}
}

// Add takes ownership of a file result. A second result for the same
// path replaces the first.
func (a *Aggregator) Add(r FileResult) {
	if i, ok := a.seen[r.Path]; ok {
		a.files[i] = r
		return
	}
	a.seen[r.Path] = len(a.files)
	a.files = append(a.files, r)
}

// Has reports whether a result for path was added.
func (a *Aggregator) Has(path string) bool {
	_, ok := a.seen[path]
	return ok
}

// Len returns the number of results added.
func (a *Aggregator) Len() int {
	return len(a.files)
}

// Finish orders the results by path and computes the summary.
//
// Inputs:
//
//	warnings - Registration warnings to carry into the summary.
//	abortReason - Non-empty marks the report as aborted.
func (a *Aggregator) Finish(warnings []string, abortReason string) *RunReport {
	files := make([]FileResult, len(a.files))
	copy(files, a.files)
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	for i := range files {
		if files[i].Violations == nil {
			files[i].Violations = []rule.Violation{}
		}
	}

	summary := Summarize(files)
	if len(warnings) > 0 {
		summary.RegistrationWarnings = append([]string(nil), warnings...)
	}
	return &RunReport{
		Files:       files,
		Summary:     summary,
		Aborted:     abortReason != "",
		AbortReason: abortReason,
	}
}
