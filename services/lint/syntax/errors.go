// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import (
	"errors"
	"fmt"
)

// Sentinel errors for parse failure categories.
var (
	// ErrParseFailed indicates tree-sitter could not produce a usable tree.
	ErrParseFailed = errors.New("parse failed")

	// ErrSyntaxError indicates the tree contains ERROR or MISSING nodes and
	// the parser runs in strict mode.
	ErrSyntaxError = errors.New("syntax error")

	// ErrInvalidContent indicates the source is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrFileTooLarge indicates the source exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrContextCanceled indicates parsing was canceled via context.
	ErrContextCanceled = errors.New("parse canceled")
)

// ParseError locates a parse failure in a source file.
//
// Example:
//
//	tree, err := parser.Parse(ctx, lang, "main.go", src)
//	var parseErr *ParseError
//	if errors.As(err, &parseErr) {
//	    fmt.Printf("%s:%d:%d\n", parseErr.FilePath, parseErr.Line, parseErr.Column)
//	}
type ParseError struct {
	// FilePath is the path of the file that failed to parse.
	FilePath string

	// Line is the 1-indexed line of the first error node, 0 if unknown.
	Line int

	// Column is the 1-indexed byte column of the first error node, 0 if unknown.
	Column int

	// Message describes the failure.
	Message string

	// Cause is the underlying sentinel or library error.
	Cause error
}

// Error formats the failure as "file:line:col: message".
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.FilePath, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsParseError reports whether err is or wraps a ParseError.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}
