// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package language

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/dockerfile"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/smacker/go-tree-sitter/yaml"
)

// Built-in language names.
const (
	Go         = "go"
	Python     = "python"
	JavaScript = "javascript"
	TypeScript = "typescript"
	TSX        = "tsx"
	Rust       = "rust"
	Bash       = "bash"
	CSS        = "css"
	HTML       = "html"
	YAML       = "yaml"
	Dockerfile = "dockerfile"
	SQL        = "sql"
)

func builtinLanguages() []*Language {
	return []*Language{
		{Name: Go, Extensions: []string{".go"}, CommentKinds: []string{"comment"}, Grammar: golang.GetLanguage()},
		{Name: Python, Extensions: []string{".py", ".pyi"}, CommentKinds: []string{"comment"}, Grammar: python.GetLanguage()},
		{Name: JavaScript, Extensions: []string{".js", ".mjs", ".cjs", ".jsx"}, CommentKinds: []string{"comment"}, Grammar: javascript.GetLanguage()},
		{Name: TypeScript, Extensions: []string{".ts", ".mts", ".cts"}, CommentKinds: []string{"comment"}, Grammar: typescript.GetLanguage()},
		{Name: TSX, Extensions: []string{".tsx"}, CommentKinds: []string{"comment"}, Grammar: tsx.GetLanguage()},
		{Name: Rust, Extensions: []string{".rs"}, CommentKinds: []string{"line_comment", "block_comment"}, Grammar: rust.GetLanguage()},
		{Name: Bash, Extensions: []string{".sh", ".bash"}, CommentKinds: []string{"comment"}, Grammar: bash.GetLanguage()},
		{Name: CSS, Extensions: []string{".css"}, CommentKinds: []string{"comment"}, Grammar: css.GetLanguage()},
		{Name: HTML, Extensions: []string{".html", ".htm"}, CommentKinds: []string{"comment"}, Grammar: html.GetLanguage()},
		{Name: YAML, Extensions: []string{".yaml", ".yml"}, CommentKinds: []string{"comment"}, Grammar: yaml.GetLanguage()},
		{Name: Dockerfile, Extensions: []string{".dockerfile"}, Filenames: []string{"Dockerfile", "Containerfile"}, CommentKinds: []string{"comment"}, Grammar: dockerfile.GetLanguage()},
		{Name: SQL, Extensions: []string{".sql"}, CommentKinds: []string{"comment", "marginalia"}, Grammar: sql.GetLanguage()},
	}
}

// Builtin returns a Registry holding every bundled tree-sitter grammar.
//
// Each call returns a fresh Registry so callers may register more
// languages without affecting others.
func Builtin() *Registry {
	r := NewRegistry()
	for _, lang := range builtinLanguages() {
		// Built-in names are unique; Register cannot fail here.
		_ = r.Register(lang)
	}
	return r
}

// Custom builds a Language from an externally supplied grammar.
func Custom(name string, grammar *sitter.Language, extensions ...string) *Language {
	return &Language{Name: name, Grammar: grammar, Extensions: extensions}
}
