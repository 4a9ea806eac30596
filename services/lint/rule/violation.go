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
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/sitterlint/services/lint/filectx"
)

// =============================================================================
// MATCHES
// =============================================================================

// Capture is one named node of a match.
type Capture struct {
	Name string
	Node *sitter.Node
}

// Match is what a listener receives.
type Match struct {
	// Captures holds every capture of the query match, in query order.
	// For kind listeners it holds the single node under the kind name, and
	// for event listeners the node under the event name.
	Captures []Capture

	// Node is the primary node: the listened capture for per-capture
	// listeners, the earliest capture otherwise, or the node for kind and
	// event listeners.
	Node *sitter.Node

	// Exit is true when a ":exit" kind listener or an emitter leave event
	// fires.
	Exit bool
}

// Get returns the first node captured under name, or nil.
func (m Match) Get(name string) *sitter.Node {
	for _, c := range m.Captures {
		if c.Name == name {
			return c.Node
		}
	}
	return nil
}

// All returns every node captured under name.
func (m Match) All(name string) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range m.Captures {
		if c.Name == name {
			out = append(out, c.Node)
		}
	}
	return out
}

// =============================================================================
// VIOLATIONS AND FIXES
// =============================================================================

// Violation is one finding.
type Violation struct {
	// RuleID is the id of the reporting rule.
	RuleID string `json:"rule"`

	// Severity is the effective severity after configuration.
	Severity Severity `json:"severity"`

	// Message is the rendered message.
	Message string `json:"message"`

	// MessageID is the template id when reported through ReportMessage.
	MessageID string `json:"message_id,omitempty"`

	// Range is where the violation applies in the reported snapshot.
	Range filectx.Range `json:"range"`

	// Fix is the proposed fix, if any.
	Fix *Fix `json:"fix,omitempty"`

	// FixApplied is set when the fix was accepted and applied.
	FixApplied bool `json:"fix_applied,omitempty"`
}

// Edit replaces [StartByte, EndByte) with Text. StartByte == EndByte is an
// insertion.
type Edit struct {
	StartByte int    `json:"start_byte"`
	EndByte   int    `json:"end_byte"`
	Text      string `json:"text"`
}

// IsInsert reports whether the edit covers no bytes.
func (e Edit) IsInsert() bool {
	return e.StartByte == e.EndByte
}

// Fix is a set of non-overlapping edits resolving one violation.
type Fix struct {
	Edits []Edit `json:"edits"`
}

// NewFix builds a Fix from edits, ordered by position.
func NewFix(edits ...Edit) *Fix {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartByte != sorted[j].StartByte {
			return sorted[i].StartByte < sorted[j].StartByte
		}
		return sorted[i].EndByte < sorted[j].EndByte
	})
	return &Fix{Edits: sorted}
}

// Span returns the smallest byte range covering every edit.
func (f *Fix) Span() (start, end int) {
	if f == nil || len(f.Edits) == 0 {
		return 0, 0
	}
	start, end = f.Edits[0].StartByte, f.Edits[0].EndByte
	for _, e := range f.Edits[1:] {
		if e.StartByte < start {
			start = e.StartByte
		}
		if e.EndByte > end {
			end = e.EndByte
		}
	}
	return start, end
}

// Validate checks that the edits are in bounds for a buffer of size
// srcLen and do not overlap each other.
func (f *Fix) Validate(srcLen int) error {
	if f == nil || len(f.Edits) == 0 {
		return fmt.Errorf("empty fix")
	}
	for i, e := range f.Edits {
		if e.StartByte < 0 || e.EndByte < e.StartByte || e.EndByte > srcLen {
			return fmt.Errorf("edit %d [%d,%d) out of bounds for %d bytes", i, e.StartByte, e.EndByte, srcLen)
		}
		if i > 0 {
			prev := f.Edits[i-1]
			if e.StartByte < prev.EndByte || (e.IsInsert() && prev.IsInsert() && e.StartByte == prev.StartByte) {
				return fmt.Errorf("edit %d overlaps edit %d", i, i-1)
			}
		}
	}
	return nil
}

// ReplaceNode replaces the text of n.
func ReplaceNode(n *sitter.Node, text string) Edit {
	return Edit{StartByte: int(n.StartByte()), EndByte: int(n.EndByte()), Text: text}
}

// ReplaceRange replaces a byte range.
func ReplaceRange(start, end int, text string) Edit {
	return Edit{StartByte: start, EndByte: end, Text: text}
}

// RemoveNode deletes n.
func RemoveNode(n *sitter.Node) Edit {
	return ReplaceNode(n, "")
}

// RemoveRange deletes a byte range.
func RemoveRange(start, end int) Edit {
	return Edit{StartByte: start, EndByte: end}
}

// InsertBefore inserts text immediately before n.
func InsertBefore(n *sitter.Node, text string) Edit {
	return Edit{StartByte: int(n.StartByte()), EndByte: int(n.StartByte()), Text: text}
}

// InsertAfter inserts text immediately after n.
func InsertAfter(n *sitter.Node, text string) Edit {
	return Edit{StartByte: int(n.EndByte()), EndByte: int(n.EndByte()), Text: text}
}
