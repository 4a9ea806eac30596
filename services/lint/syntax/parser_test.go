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
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sitterlint/services/lint/language"
)

func goLanguage(t *testing.T) *language.Language {
	t.Helper()
	lang, ok := language.Builtin().ByName(language.Go)
	require.True(t, ok)
	return lang
}

func TestParse_Valid(t *testing.T) {
	tree, err := NewParser().Parse(context.Background(), goLanguage(t), "main.go", []byte("package main\n\nfunc main() {}\n"))
	require.NoError(t, err)
	defer tree.Close()

	assert.Equal(t, "source_file", tree.RootNode().Type())
}

func TestParse_StrictRejectsSyntaxErrors(t *testing.T) {
	src := []byte("package main\n\nfunc main( {\n")
	tree, err := NewParser().Parse(context.Background(), goLanguage(t), "bad.go", src)
	require.Error(t, err)
	assert.Nil(t, tree)
	assert.True(t, errors.Is(err, ErrSyntaxError))
	assert.True(t, IsParseError(err))

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "bad.go", perr.FilePath)
	assert.GreaterOrEqual(t, perr.Line, 3, "error should be located on or after the broken line")
	assert.True(t, strings.HasPrefix(err.Error(), "bad.go:"))
}

func TestParse_TolerantKeepsErrorTree(t *testing.T) {
	src := []byte("package main\n\nfunc main( {\n")
	tree, err := NewParser(WithTolerance(true)).Parse(context.Background(), goLanguage(t), "bad.go", src)
	require.NoError(t, err)
	defer tree.Close()

	assert.True(t, tree.RootNode().HasError())
	assert.NotNil(t, FirstError(tree.RootNode()))
}

func TestParse_InvalidUTF8(t *testing.T) {
	_, err := NewParser().Parse(context.Background(), goLanguage(t), "bin.go", []byte{0xff, 0xfe, 0x00})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidContent))
}

func TestParse_TooLarge(t *testing.T) {
	_, err := NewParser(WithMaxFileSize(8)).Parse(context.Background(), goLanguage(t), "big.go", []byte("package main\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFileTooLarge))
}

func TestParse_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewParser().Parse(ctx, goLanguage(t), "main.go", []byte("package main\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContextCanceled))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseError_Format(t *testing.T) {
	tests := []struct {
		err  ParseError
		want string
	}{
		{ParseError{FilePath: "a.go", Line: 2, Column: 5, Message: "m"}, "a.go:2:5: m"},
		{ParseError{FilePath: "a.go", Line: 2, Message: "m"}, "a.go:2: m"},
		{ParseError{FilePath: "a.go", Message: "m"}, "a.go: m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestFirstError_CleanTree(t *testing.T) {
	tree, err := NewParser().Parse(context.Background(), goLanguage(t), "main.go", []byte("package main\n"))
	require.NoError(t, err)
	defer tree.Close()
	assert.Nil(t, FirstError(tree.RootNode()))
	assert.Nil(t, FirstError(nil))
}
