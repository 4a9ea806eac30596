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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

func fixItem(order, seq int, edits ...rule.Edit) collected {
	return collected{v: rule.Violation{Fix: rule.NewFix(edits...)}, order: order, seq: seq}
}

func TestSpansConflict(t *testing.T) {
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd int
		want                       bool
	}{
		{"disjoint", 0, 3, 5, 8, false},
		{"adjacent", 0, 3, 3, 6, false},
		{"overlapping", 0, 4, 3, 6, true},
		{"contained", 0, 10, 3, 6, true},
		{"insert at end", 0, 3, 3, 3, false},
		{"insert at start", 3, 6, 3, 3, false},
		{"insert inside", 0, 6, 3, 3, true},
		{"inserts same point", 3, 3, 3, 3, true},
		{"inserts apart", 3, 3, 4, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, spansConflict(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
			assert.Equal(t, tt.want, spansConflict(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd), "symmetric")
		})
	}
}

func TestSelectFixes_GreedyByStartThenOrder(t *testing.T) {
	items := []collected{
		fixItem(1, 0, rule.ReplaceRange(0, 3, "x")), // loses the tie to order 0
		fixItem(0, 1, rule.ReplaceRange(0, 2, "y")),
		fixItem(0, 2, rule.ReplaceRange(1, 4, "z")), // overlaps the accepted fix
		fixItem(2, 3, rule.ReplaceRange(4, 6, "w")),
		fixItem(2, 4, rule.ReplaceRange(6, 6, "!")), // insertion at the end of the previous fix
		{v: rule.Violation{}, order: 0, seq: 5},
	}

	assert.Equal(t, []int{1, 3, 4}, selectFixes(items))
}

func TestSelectFixes_MultiEditSpan(t *testing.T) {
	// The first fix spans [0,10) even though its edits leave a gap.
	items := []collected{
		fixItem(0, 0, rule.ReplaceRange(0, 1, "a"), rule.ReplaceRange(9, 10, "b")),
		fixItem(1, 1, rule.ReplaceRange(4, 5, "c")),
	}
	assert.Equal(t, []int{0}, selectFixes(items))
}

func TestApplyFixes(t *testing.T) {
	src := []byte("foo(bar, baz)")
	items := []collected{
		fixItem(0, 0, rule.ReplaceRange(0, 3, "qux")),
		fixItem(0, 1, rule.ReplaceRange(4, 7, "b")),
		fixItem(0, 2, rule.ReplaceRange(12, 12, ", 1")),
		fixItem(1, 3, rule.ReplaceRange(4, 12, "nope")),
	}

	out, n := applyFixes(src, items)
	assert.Equal(t, "qux(b, baz, 1)", string(out))
	assert.Equal(t, 3, n)
	assert.True(t, items[0].v.FixApplied)
	assert.True(t, items[1].v.FixApplied)
	assert.True(t, items[2].v.FixApplied)
	assert.False(t, items[3].v.FixApplied)
	assert.Equal(t, "foo(bar, baz)", string(src), "source is not modified")
}

func TestApplyFixes_None(t *testing.T) {
	src := []byte("x")
	out, n := applyFixes(src, []collected{{v: rule.Violation{}}})
	assert.Zero(t, n)
	assert.Equal(t, "x", string(out))
}
