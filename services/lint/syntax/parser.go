// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syntax is the parser provider: it turns a language and a source
// buffer into a tree-sitter syntax tree, or a located parse failure.
//
// Two modes are supported. Strict mode (the default) treats any ERROR or
// MISSING node as a parse failure, so no rule ever sees a broken tree.
// Tolerant mode returns such trees and lets rules run on them.
package syntax

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/sitterlint/services/lint/language"
)

// DefaultMaxFileSize is the largest source accepted by default (10 MiB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// Parser produces syntax trees.
//
// Description:
//
//	Implementations must be safe for concurrent use. The caller owns the
//	returned tree and must Close it.
type Parser interface {
	Parse(ctx context.Context, lang *language.Language, path string, src []byte) (*sitter.Tree, error)
}

// Option configures a TreeSitterParser.
type Option func(*TreeSitterParser)

// WithTolerance lets trees containing syntax errors through.
func WithTolerance(allow bool) Option {
	return func(p *TreeSitterParser) {
		p.allowErrors = allow
	}
}

// WithMaxFileSize sets the largest accepted source size in bytes.
func WithMaxFileSize(n int) Option {
	return func(p *TreeSitterParser) {
		if n > 0 {
			p.maxFileSize = n
		}
	}
}

// TreeSitterParser is the Parser backed by go-tree-sitter.
//
// Thread Safety:
//
//	Safe for concurrent use. A new sitter.Parser is created per call because
//	tree-sitter parsers are not goroutine-safe.
type TreeSitterParser struct {
	allowErrors bool
	maxFileSize int
}

// NewParser creates a strict TreeSitterParser.
func NewParser(opts ...Option) *TreeSitterParser {
	p := &TreeSitterParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AllowsErrors reports whether the parser runs in tolerant mode.
func (p *TreeSitterParser) AllowsErrors() bool {
	return p.allowErrors
}

// Parse parses src with lang's grammar.
//
// Description:
//
//	Validates size and encoding, parses with cancellation support, and in
//	strict mode rejects trees containing ERROR or MISSING nodes. On any
//	failure the tree is released before returning.
//
// Inputs:
//
//	ctx - Cancellation.
//	lang - Grammar to use. Must not be nil.
//	path - Used in error messages only.
//	src - Source bytes.
//
// Outputs:
//
//	*sitter.Tree - The tree; the caller must Close it.
//	error - A *ParseError wrapping one of the package sentinels.
func (p *TreeSitterParser) Parse(ctx context.Context, lang *language.Language, path string, src []byte) (*sitter.Tree, error) {
	ctx, span := startParseSpan(ctx, lang.Name, path, len(src))
	defer span.End()
	start := time.Now()

	tree, err := p.parse(ctx, lang, path, src)
	recordParseMetrics(ctx, lang.Name, time.Since(start), err == nil)
	if err != nil {
		span.RecordError(err)
	}
	return tree, err
}

func (p *TreeSitterParser) parse(ctx context.Context, lang *language.Language, path string, src []byte) (*sitter.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ParseError{FilePath: path, Message: "canceled before start", Cause: fmt.Errorf("%w: %w", ErrContextCanceled, err)}
	}
	if len(src) > p.maxFileSize {
		return nil, &ParseError{FilePath: path, Message: fmt.Sprintf("size %d exceeds limit %d", len(src), p.maxFileSize), Cause: ErrFileTooLarge}
	}
	if !utf8.Valid(src) {
		return nil, &ParseError{FilePath: path, Message: "content is not valid UTF-8", Cause: ErrInvalidContent}
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang.Grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ParseError{FilePath: path, Message: "canceled", Cause: fmt.Errorf("%w: %w", ErrContextCanceled, ctx.Err())}
		}
		return nil, &ParseError{FilePath: path, Message: "tree-sitter parse failed", Cause: fmt.Errorf("%w: %w", ErrParseFailed, err)}
	}
	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return nil, &ParseError{FilePath: path, Message: "tree-sitter returned nil root node", Cause: ErrParseFailed}
	}

	if root.HasError() && !p.allowErrors {
		perr := &ParseError{FilePath: path, Message: "source contains syntax errors", Cause: ErrSyntaxError}
		if bad := FirstError(root); bad != nil {
			pt := bad.StartPoint()
			perr.Line = int(pt.Row) + 1
			perr.Column = int(pt.Column) + 1
			if bad.IsMissing() {
				perr.Message = fmt.Sprintf("missing %s", bad.Type())
			} else {
				perr.Message = "unexpected syntax"
			}
		}
		tree.Close()
		return nil, perr
	}
	return tree, nil
}

// FirstError returns the first ERROR or MISSING node in document order,
// or nil when the subtree is clean.
func FirstError(node *sitter.Node) *sitter.Node {
	if node == nil || !node.HasError() {
		return nil
	}
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Type() == "ERROR" || child.IsMissing() {
			return child
		}
		if found := FirstError(child); found != nil {
			return found
		}
	}
	// HasError was set but no child carries it; report the node itself.
	return node
}
