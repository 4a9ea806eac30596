// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filectx

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// =============================================================================
// Navigation
// =============================================================================

// Parent returns the parent of n, or nil for the root.
func (f *File) Parent(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.Parent()
}

// Children returns all children of n, named and anonymous.
func (f *File) Children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		out = append(out, n.Child(i))
	}
	return out
}

// NamedChildren returns the named children of n.
func (f *File) NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

// NextSibling returns the following sibling of n, or nil.
func (f *File) NextSibling(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.NextSibling()
}

// PrevSibling returns the preceding sibling of n, or nil.
func (f *File) PrevSibling(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.PrevSibling()
}

// Ancestors returns the ancestors of n from its parent up to the root.
func (f *File) Ancestors(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for p := f.Parent(n); p != nil; p = p.Parent() {
		out = append(out, p)
	}
	return out
}

// Enclosing returns the nearest ancestor of n with the given kind, or nil.
func (f *File) Enclosing(n *sitter.Node, kind string) *sitter.Node {
	for p := f.Parent(n); p != nil; p = p.Parent() {
		if p.Type() == kind {
			return p
		}
	}
	return nil
}

// NodeAt returns the deepest node whose range contains offset, or nil when
// the offset is outside the tree.
func (f *File) NodeAt(offset int) *sitter.Node {
	node := f.Root()
	if node == nil || offset < int(node.StartByte()) || offset >= int(node.EndByte()) {
		return nil
	}
	for {
		var next *sitter.Node
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child != nil && offset >= int(child.StartByte()) && offset < int(child.EndByte()) {
				next = child
				break
			}
		}
		if next == nil {
			return node
		}
		node = next
	}
}

// Walk visits the subtree of n in document order with a tree cursor.
//
// fn returns false to skip the children of the visited node. The cursor is
// released before Walk returns.
func (f *File) Walk(n *sitter.Node, fn func(node *sitter.Node, depth int) bool) {
	if n == nil {
		return
	}
	cursor := sitter.NewTreeCursor(n)
	defer cursor.Close()

	depth := 0
	for {
		if fn(cursor.CurrentNode(), depth) && cursor.GoToFirstChild() {
			depth++
			continue
		}
		for !cursor.GoToNextSibling() {
			if depth == 0 || !cursor.GoToParent() {
				return
			}
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// Traverse visits the subtree of n in document order, calling enter when
// the cursor reaches a node and leave once all of its children have been
// visited. The first error returned by either callback stops the
// traversal and is returned.
func (f *File) Traverse(n *sitter.Node, enter, leave func(node *sitter.Node) error) error {
	if n == nil {
		return nil
	}
	cursor := sitter.NewTreeCursor(n)
	defer cursor.Close()

	depth := 0
	for {
		node := cursor.CurrentNode()
		if err := enter(node); err != nil {
			return err
		}
		if cursor.GoToFirstChild() {
			depth++
			continue
		}
		if err := leave(node); err != nil {
			return err
		}
		for {
			if depth == 0 {
				return nil
			}
			if cursor.GoToNextSibling() {
				break
			}
			cursor.GoToParent()
			depth--
			if err := leave(cursor.CurrentNode()); err != nil {
				return err
			}
		}
	}
}

// =============================================================================
// Ad-hoc queries
// =============================================================================

// QueryCapture is one captured node from QueryCaptures.
type QueryCapture struct {
	Name string
	Node *sitter.Node
}

// QueryCaptures runs a tree-sitter query over the subtree of n and returns
// its captures in match order, after predicate filtering.
//
// Compiled queries are cached on the File and released by Close.
func (f *File) QueryCaptures(pattern string, n *sitter.Node) ([]QueryCapture, error) {
	if f.tree == nil {
		return nil, ErrClosed
	}
	if n == nil {
		n = f.Root()
	}
	q, ok := f.queries[pattern]
	if !ok {
		var err error
		q, err = sitter.NewQuery([]byte(pattern), f.Language.Grammar)
		if err != nil {
			return nil, fmt.Errorf("compile query: %w", err)
		}
		if f.queries == nil {
			f.queries = make(map[string]*sitter.Query)
		}
		f.queries[pattern] = q
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, n)

	var out []QueryCapture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, f.Source)
		for _, c := range m.Captures {
			out = append(out, QueryCapture{Name: q.CaptureNameForId(c.Index), Node: c.Node})
		}
	}
	return out, nil
}
