// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filectx provides the per-file view that rules read from: one
// syntax tree, the source bytes it was parsed from, and position helpers.
//
// A File is owned by exactly one worker for one lint pass. When the fix
// loop produces a new buffer the old File is closed and a fresh one is
// built from the new tree; nodes obtained from a closed File must not be
// used.
package filectx

import (
	"errors"
	"reflect"
	"sort"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/sitterlint/services/lint/language"
)

// ErrClosed is returned by operations on a File whose tree was released.
var ErrClosed = errors.New("file context closed")

// Position is a 1-based line and column. Columns count UTF-8 characters.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range is a half-open byte range [StartByte, EndByte) with the matching
// line/column positions.
type Range struct {
	StartByte int      `json:"start_byte"`
	EndByte   int      `json:"end_byte"`
	Start     Position `json:"start"`
	End       Position `json:"end"`
}

// Len returns the number of bytes covered.
func (r Range) Len() int {
	return r.EndByte - r.StartByte
}

// Contains reports whether offset lies within the range.
func (r Range) Contains(offset int) bool {
	return offset >= r.StartByte && offset < r.EndByte
}

// File is the read-only context for one (path, source, tree) snapshot.
//
// Thread Safety:
//
//	Not safe for concurrent use. A File belongs to the worker linting it.
type File struct {
	// Path is the file path as given to the engine.
	Path string

	// Language is the language the tree was parsed with.
	Language *language.Language

	// Source is the exact buffer the tree was parsed from. Do not modify.
	Source []byte

	// Environment holds run-wide settings supplied by the caller. Rules
	// read it but must not modify it.
	Environment map[string]any

	tree       *sitter.Tree
	lineStarts []int
	queries    map[string]*sitter.Query
	tokens     []*sitter.Node
	values     map[reflect.Type]any
}

// New wraps a parsed tree.
//
// Inputs:
//
//	path - File path.
//	lang - The tree's language.
//	src - The source the tree was parsed from.
//	tree - The tree. Ownership moves to the File; Close releases it.
func New(path string, lang *language.Language, src []byte, tree *sitter.Tree) *File {
	return &File{
		Path:       path,
		Language:   lang,
		Source:     src,
		tree:       tree,
		lineStarts: lineStarts(src),
	}
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// Close releases the tree, any queries compiled through QueryCaptures, and
// the values built by Provide.
func (f *File) Close() {
	for _, q := range f.queries {
		q.Close()
	}
	f.queries = nil
	f.tokens = nil
	f.values = nil
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// Closed reports whether Close has been called.
func (f *File) Closed() bool {
	return f.tree == nil
}

// Tree returns the underlying tree, or nil after Close.
func (f *File) Tree() *sitter.Tree {
	return f.tree
}

// Root returns the root node, or nil after Close.
func (f *File) Root() *sitter.Node {
	if f.tree == nil {
		return nil
	}
	return f.tree.RootNode()
}

// =============================================================================
// Text and positions
// =============================================================================

// Text returns the source text of a node.
func (f *File) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return f.Slice(int(n.StartByte()), int(n.EndByte()))
}

// Slice returns the source text of a byte range, clamped to the buffer.
func (f *File) Slice(start, end int) string {
	start, end = f.clamp(start), f.clamp(end)
	if start >= end {
		return ""
	}
	return string(f.Source[start:end])
}

func (f *File) clamp(offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > len(f.Source) {
		return len(f.Source)
	}
	return offset
}

// Position translates a byte offset into a 1-based line and column.
//
// Offsets past the end of the buffer are clamped to the end.
func (f *File) Position(offset int) Position {
	offset = f.clamp(offset)
	line := sort.Search(len(f.lineStarts), func(i int) bool {
		return f.lineStarts[i] > offset
	}) - 1
	start := f.lineStarts[line]
	return Position{
		Line:   line + 1,
		Column: utf8.RuneCount(f.Source[start:offset]) + 1,
	}
}

// Offset translates a 1-based line and column back into a byte offset.
//
// Outputs:
//
//	int - The offset.
//	bool - False when the line is out of range.
func (f *File) Offset(pos Position) (int, bool) {
	if pos.Line < 1 || pos.Line > len(f.lineStarts) {
		return 0, false
	}
	offset := f.lineStarts[pos.Line-1]
	for col := 1; col < pos.Column && offset < len(f.Source) && f.Source[offset] != '\n'; col++ {
		_, size := utf8.DecodeRune(f.Source[offset:])
		offset += size
	}
	return offset, true
}

// LineCount returns the number of lines in the buffer.
func (f *File) LineCount() int {
	return len(f.lineStarts)
}

// Line returns the text of a 1-based line without its newline.
func (f *File) Line(n int) string {
	if n < 1 || n > len(f.lineStarts) {
		return ""
	}
	start := f.lineStarts[n-1]
	end := len(f.Source)
	if n < len(f.lineStarts) {
		end = f.lineStarts[n] - 1
	}
	return f.Slice(start, end)
}

// Range returns the range covered by a node.
func (f *File) Range(n *sitter.Node) Range {
	return f.RangeOf(int(n.StartByte()), int(n.EndByte()))
}

// RangeOf builds a Range for a byte span.
func (f *File) RangeOf(start, end int) Range {
	start, end = f.clamp(start), f.clamp(end)
	if end < start {
		end = start
	}
	return Range{
		StartByte: start,
		EndByte:   end,
		Start:     f.Position(start),
		End:       f.Position(end),
	}
}
