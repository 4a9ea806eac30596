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
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// =============================================================================
// Tokens and comments
// =============================================================================

// SkipOptions selects a single token.
//
// Comments are not tokens unless IncludeComments is set. Filter, when set,
// rejects tokens for which it returns false. Skip passes over that many
// accepted tokens before one is returned.
type SkipOptions struct {
	Skip            int
	IncludeComments bool
	Filter          func(n *sitter.Node) bool
}

// CountOptions selects a run of tokens.
//
// Count limits the number of tokens returned; zero returns all of them.
// IncludeComments and Filter behave as in SkipOptions.
type CountOptions struct {
	Count           int
	IncludeComments bool
	Filter          func(n *sitter.Node) bool
}

func (o SkipOptions) accepts(f *File, n *sitter.Node) bool {
	return acceptToken(f, n, o.IncludeComments, o.Filter)
}

func (o CountOptions) accepts(f *File, n *sitter.Node) bool {
	return acceptToken(f, n, o.IncludeComments, o.Filter)
}

func acceptToken(f *File, n *sitter.Node, comments bool, filter func(*sitter.Node) bool) bool {
	if !comments && f.IsComment(n) {
		return false
	}
	return filter == nil || filter(n)
}

// Tokens returns the tokens of the whole file in document order, comments
// included.
//
// Description:
//
//	A token is a leaf of the syntax tree with non-blank text; terminators
//	that are only whitespace, such as Go's implicit "\n", are not tokens.
//	A comment node is one token even when the grammar gives it children.
//	The list is computed once per File and shared by every caller, so it
//	must not be modified.
func (f *File) Tokens() []*sitter.Node {
	if f.tokens != nil || f.Root() == nil {
		return f.tokens
	}
	tokens := []*sitter.Node{}
	f.Walk(f.Root(), func(n *sitter.Node, _ int) bool {
		if f.IsComment(n) {
			tokens = append(tokens, n)
			return false
		}
		if n.ChildCount() == 0 && n.EndByte() > n.StartByte() && strings.TrimSpace(f.Text(n)) != "" {
			tokens = append(tokens, n)
		}
		return true
	})
	f.tokens = tokens
	return tokens
}

// firstAtOrAfter returns the index of the first token starting at or after
// offset.
func (f *File) firstAtOrAfter(offset uint32) int {
	tokens := f.Tokens()
	return sort.Search(len(tokens), func(i int) bool {
		return tokens[i].StartByte() >= offset
	})
}

// lastEndingBy returns the index one past the last token ending at or
// before offset.
func (f *File) lastEndingBy(offset uint32) int {
	tokens := f.Tokens()
	return sort.Search(len(tokens), func(i int) bool {
		return tokens[i].EndByte() > offset
	})
}

// within returns the tokens inside n.
func (f *File) within(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	tokens := f.Tokens()
	lo := f.firstAtOrAfter(n.StartByte())
	hi := f.lastEndingBy(n.EndByte())
	if hi < lo {
		hi = lo
	}
	return tokens[lo:hi]
}

// pick walks tokens forward (or backward) and returns the token after
// skip accepted ones.
func (f *File) pick(tokens []*sitter.Node, opts SkipOptions, backward bool) *sitter.Node {
	skip := opts.Skip
	for i := range tokens {
		tok := tokens[i]
		if backward {
			tok = tokens[len(tokens)-1-i]
		}
		if !opts.accepts(f, tok) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		return tok
	}
	return nil
}

// take collects up to opts.Count accepted tokens walking forward (or
// backward) and returns them in document order.
func (f *File) take(tokens []*sitter.Node, opts CountOptions, backward bool) []*sitter.Node {
	out := []*sitter.Node{}
	for i := range tokens {
		tok := tokens[i]
		if backward {
			tok = tokens[len(tokens)-1-i]
		}
		if !opts.accepts(f, tok) {
			continue
		}
		out = append(out, tok)
		if opts.Count > 0 && len(out) == opts.Count {
			break
		}
	}
	if backward {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// TokensOf returns the accepted tokens inside n, after skipping the first
// opts.Skip of them.
func (f *File) TokensOf(n *sitter.Node, opts SkipOptions) []*sitter.Node {
	out := []*sitter.Node{}
	skip := opts.Skip
	for _, tok := range f.within(n) {
		if !opts.accepts(f, tok) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, tok)
	}
	return out
}

// FirstToken returns the first accepted token of n, or nil.
func (f *File) FirstToken(n *sitter.Node, opts SkipOptions) *sitter.Node {
	return f.pick(f.within(n), opts, false)
}

// LastToken returns the last accepted token of n, or nil. Skip counts
// from the end.
func (f *File) LastToken(n *sitter.Node, opts SkipOptions) *sitter.Node {
	return f.pick(f.within(n), opts, true)
}

// FirstTokens returns the first opts.Count accepted tokens of n.
func (f *File) FirstTokens(n *sitter.Node, opts CountOptions) []*sitter.Node {
	return f.take(f.within(n), opts, false)
}

// LastTokens returns the last opts.Count accepted tokens of n in document
// order.
func (f *File) LastTokens(n *sitter.Node, opts CountOptions) []*sitter.Node {
	return f.take(f.within(n), opts, true)
}

// TokenBefore returns the nearest accepted token ending at or before n
// starts, or nil.
func (f *File) TokenBefore(n *sitter.Node, opts SkipOptions) *sitter.Node {
	if n == nil {
		return nil
	}
	return f.pick(f.Tokens()[:f.lastEndingBy(n.StartByte())], opts, true)
}

// TokenAfter returns the nearest accepted token starting at or after n
// ends, or nil.
func (f *File) TokenAfter(n *sitter.Node, opts SkipOptions) *sitter.Node {
	if n == nil {
		return nil
	}
	return f.pick(f.Tokens()[f.firstAtOrAfter(n.EndByte()):], opts, false)
}

// TokensBefore returns up to opts.Count accepted tokens preceding n, in
// document order.
func (f *File) TokensBefore(n *sitter.Node, opts CountOptions) []*sitter.Node {
	if n == nil {
		return nil
	}
	return f.take(f.Tokens()[:f.lastEndingBy(n.StartByte())], opts, true)
}

// TokensAfter returns up to opts.Count accepted tokens following n.
func (f *File) TokensAfter(n *sitter.Node, opts CountOptions) []*sitter.Node {
	if n == nil {
		return nil
	}
	return f.take(f.Tokens()[f.firstAtOrAfter(n.EndByte()):], opts, false)
}

// between returns the tokens after a ends and before b starts.
func (f *File) between(a, b *sitter.Node) []*sitter.Node {
	if a == nil || b == nil {
		return nil
	}
	lo := f.firstAtOrAfter(a.EndByte())
	hi := f.lastEndingBy(b.StartByte())
	if hi < lo {
		return nil
	}
	return f.Tokens()[lo:hi]
}

// TokensBetween returns the accepted tokens strictly between a and b,
// after skipping the first opts.Skip of them.
func (f *File) TokensBetween(a, b *sitter.Node, opts SkipOptions) []*sitter.Node {
	out := []*sitter.Node{}
	skip := opts.Skip
	for _, tok := range f.between(a, b) {
		if !opts.accepts(f, tok) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, tok)
	}
	return out
}

// CommentsExistBetween reports whether a comment lies between a and b.
func (f *File) CommentsExistBetween(a, b *sitter.Node) bool {
	for _, tok := range f.between(a, b) {
		if f.IsComment(tok) {
			return true
		}
	}
	return false
}

// CommentsBefore returns the comments directly preceding n with no other
// token in between, in document order.
func (f *File) CommentsBefore(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	tokens := f.Tokens()
	end := f.lastEndingBy(n.StartByte())
	start := end
	for start > 0 && f.IsComment(tokens[start-1]) {
		start--
	}
	return tokens[start:end]
}

// CommentsAfter returns the comments directly following n with no other
// token in between.
func (f *File) CommentsAfter(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	tokens := f.Tokens()
	start := f.firstAtOrAfter(n.EndByte())
	end := start
	for end < len(tokens) && f.IsComment(tokens[end]) {
		end++
	}
	return tokens[start:end]
}

// IsComment reports whether n is a comment node of the file's language.
func (f *File) IsComment(n *sitter.Node) bool {
	return n != nil && f.Language != nil && f.Language.IsComment(n.Type())
}

// Comments returns all comment nodes in document order.
func (f *File) Comments() []*sitter.Node {
	var out []*sitter.Node
	for _, tok := range f.Tokens() {
		if f.IsComment(tok) {
			out = append(out, tok)
		}
	}
	return out
}
