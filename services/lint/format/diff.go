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
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/sitterlint/services/lint/report"
)

// DefaultContextLines is the number of unchanged lines around each hunk.
const DefaultContextLines = 3

// DiffFormatter writes the fixes of a report as a unified diff.
//
// Files whose source was not changed are omitted. The output applies with
// `git apply` or `patch -p1`.
type DiffFormatter struct {
	context int
}

// NewDiffFormatter creates a diff formatter.
func NewDiffFormatter() *DiffFormatter {
	return &DiffFormatter{context: DefaultContextLines}
}

// Name returns the format name.
func (f *DiffFormatter) Name() FormatType {
	return FormatDiff
}

// Format writes one file diff per changed file, in report order.
func (f *DiffFormatter) Format(rep *report.RunReport, w io.Writer) error {
	var diffs []*diff.FileDiff
	for i := range rep.Files {
		file := &rep.Files[i]
		if !file.Changed() {
			continue
		}
		diffs = append(diffs, FileDiff(file.Path, file.Source, file.FixedSource, f.context))
	}
	if len(diffs) == 0 {
		return nil
	}
	out, err := diff.PrintMultiFileDiff(diffs)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// Unified returns the unified diff between two versions of one file.
func Unified(path string, before, after []byte) (string, error) {
	if string(before) == string(after) {
		return "", nil
	}
	out, err := diff.PrintFileDiff(FileDiff(path, before, after, DefaultContextLines))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// FileDiff computes the hunks between before and after.
//
// Description:
//
//	Lines are compared with difflib's sequence matcher and grouped into
//	hunks with contextLines lines of context. A final line without a
//	newline is treated as if it had one.
func FileDiff(path string, before, after []byte, contextLines int) *diff.FileDiff {
	a, b := splitLines(string(before)), splitLines(string(after))
	fd := &diff.FileDiff{
		OrigName: "a/" + path,
		NewName:  "b/" + path,
	}

	m := difflib.NewMatcher(a, b)
	for _, group := range m.GetGroupedOpCodes(contextLines) {
		first, last := group[0], group[len(group)-1]
		h := &diff.Hunk{
			OrigStartLine: hunkStart(first.I1, last.I2-first.I1),
			OrigLines:     int32(last.I2 - first.I1),
			NewStartLine:  hunkStart(first.J1, last.J2-first.J1),
			NewLines:      int32(last.J2 - first.J1),
		}

		var body strings.Builder
		for _, op := range group {
			switch op.Tag {
			case 'e':
				writeLines(&body, ' ', a[op.I1:op.I2])
			case 'd':
				writeLines(&body, '-', a[op.I1:op.I2])
			case 'i':
				writeLines(&body, '+', b[op.J1:op.J2])
			case 'r':
				writeLines(&body, '-', a[op.I1:op.I2])
				writeLines(&body, '+', b[op.J1:op.J2])
			}
		}
		h.Body = []byte(body.String())
		fd.Hunks = append(fd.Hunks, h)
	}
	return fd
}

// hunkStart converts a 0-based line index to the unified diff start line.
// Empty ranges name the line before the change.
func hunkStart(index, count int) int32 {
	if count == 0 {
		return int32(index)
	}
	return int32(index + 1)
}

func writeLines(sb *strings.Builder, prefix byte, lines []string) {
	for _, l := range lines {
		sb.WriteByte(prefix)
		sb.WriteString(l)
		if !strings.HasSuffix(l, "\n") {
			sb.WriteByte('\n')
		}
	}
}

// splitLines splits s after each newline, keeping the terminators.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
