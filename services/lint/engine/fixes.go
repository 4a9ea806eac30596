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
	"bytes"
	"sort"

	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// fixCandidate is a violation's fix span with its selection keys.
type fixCandidate struct {
	index int // position in the finalized violation list
	start int
	end   int
	order int
	seq   int
}

// selectFixes picks a non-overlapping subset of fixes.
//
// Description:
//
//	Fixes are taken in (span start, rule registration order, report
//	order) and accepted greedily; a fix is skipped when its span overlaps
//	the span of a fix already accepted. The violation of a skipped fix is
//	still reported.
//
// Outputs:
//
//	[]int - Indices into items of the violations whose fixes were accepted,
//	in ascending order.
func selectFixes(items []collected) []int {
	var cands []fixCandidate
	for i := range items {
		if items[i].v.Fix == nil {
			continue
		}
		start, end := items[i].v.Fix.Span()
		cands = append(cands, fixCandidate{index: i, start: start, end: end, order: items[i].order, seq: items[i].seq})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].start != cands[j].start {
			return cands[i].start < cands[j].start
		}
		if cands[i].order != cands[j].order {
			return cands[i].order < cands[j].order
		}
		return cands[i].seq < cands[j].seq
	})

	var accepted []fixCandidate
	var indices []int
	for _, c := range cands {
		if conflictsWithExisting(accepted, c) {
			continue
		}
		accepted = append(accepted, c)
		indices = append(indices, c.index)
	}
	sort.Ints(indices)
	return indices
}

func conflictsWithExisting(existing []fixCandidate, c fixCandidate) bool {
	for _, prev := range existing {
		if spansConflict(prev.start, prev.end, c.start, c.end) {
			return true
		}
	}
	return false
}

// spansConflict reports whether two fix spans overlap.
//
// Two insertions at the same offset conflict since their relative order
// would be arbitrary. An insertion conflicts with a non-empty span only
// when it falls strictly inside it.
func spansConflict(aStart, aEnd, bStart, bEnd int) bool {
	aInsert, bInsert := aStart == aEnd, bStart == bEnd
	switch {
	case aInsert && bInsert:
		return aStart == bStart
	case aInsert:
		return bStart < aStart && aStart < bEnd
	case bInsert:
		return aStart < bStart && bStart < aEnd
	default:
		return aStart < bEnd && bStart < aEnd
	}
}

// applyEdits applies non-conflicting edits to src front to back.
func applyEdits(src []byte, edits []rule.Edit) []byte {
	sorted := make([]rule.Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartByte != sorted[j].StartByte {
			return sorted[i].StartByte < sorted[j].StartByte
		}
		return sorted[i].EndByte < sorted[j].EndByte
	})

	var buf bytes.Buffer
	buf.Grow(len(src))
	cursor := 0
	for _, e := range sorted {
		buf.Write(src[cursor:e.StartByte])
		buf.WriteString(e.Text)
		cursor = e.EndByte
	}
	buf.Write(src[cursor:])
	return buf.Bytes()
}

// applyFixes applies the accepted fixes of a finalized pass.
//
// Outputs:
//
//	[]byte - The new buffer.
//	int - Number of fixes applied. The accepted violations are flagged
//	with FixApplied.
func applyFixes(src []byte, items []collected) ([]byte, int) {
	indices := selectFixes(items)
	if len(indices) == 0 {
		return src, 0
	}
	var edits []rule.Edit
	for _, i := range indices {
		items[i].v.FixApplied = true
		edits = append(edits, items[i].v.Fix.Edits...)
	}
	return applyEdits(src, edits), len(indices)
}
