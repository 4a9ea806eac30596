// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package language describes the source languages sitterlint can lint.
//
// A Language pairs a tree-sitter grammar with the file extensions that
// select it and the node kinds that represent comments. Languages are
// looked up through a Registry, which is safe for concurrent use and is
// populated once at startup (see Builtin).
package language

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrUnsupportedLanguage indicates that no language is registered for the
// requested name or file extension.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language is one lintable source language.
//
// Thread Safety:
//
//	Immutable after registration. HasKind memoises its results and is safe
//	for concurrent use.
type Language struct {
	// Name is the identifier used in rule definitions and config ("go").
	Name string

	// Extensions are lowercase file extensions including the dot.
	Extensions []string

	// Filenames are exact base names that select the language ("Dockerfile").
	Filenames []string

	// CommentKinds are the node kinds the grammar uses for comments.
	CommentKinds []string

	// Grammar is the tree-sitter grammar.
	Grammar *sitter.Language

	kinds sync.Map // kind -> bool
}

// HasKind reports whether the grammar defines a named node kind.
//
// Description:
//
//	The grammar is checked by compiling the query "(kind) @k"; tree-sitter
//	rejects queries that reference unknown node types. Results are cached.
func (l *Language) HasKind(kind string) bool {
	if kind == "" || l.Grammar == nil {
		return false
	}
	if v, ok := l.kinds.Load(kind); ok {
		return v.(bool)
	}
	q, err := sitter.NewQuery([]byte("("+kind+") @k"), l.Grammar)
	ok := err == nil
	if q != nil {
		q.Close()
	}
	l.kinds.Store(kind, ok)
	return ok
}

// IsComment reports whether kind is one of the language's comment kinds.
func (l *Language) IsComment(kind string) bool {
	for _, k := range l.CommentKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// String returns the language name.
func (l *Language) String() string {
	return l.Name
}

// Registry maps language names, file extensions and file names to Languages.
//
// Thread Safety:
//
//	Registry is fully thread-safe. Registration uses write locks, lookups
//	use read locks.
type Registry struct {
	mu sync.RWMutex

	byName      map[string]*Language
	byExtension map[string]*Language
	byFilename  map[string]*Language
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:      make(map[string]*Language),
		byExtension: make(map[string]*Language),
		byFilename:  make(map[string]*Language),
	}
}

// Register adds a language.
//
// Inputs:
//
//	lang - The language. Name and Grammar are required.
//
// Outputs:
//
//	error - Non-nil if the language is incomplete or the name is taken.
func (r *Registry) Register(lang *Language) error {
	if lang == nil || lang.Name == "" {
		return errors.New("language name is required")
	}
	if lang.Grammar == nil {
		return fmt.Errorf("language %q: grammar is required", lang.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[lang.Name]; exists {
		return fmt.Errorf("language %q already registered", lang.Name)
	}
	r.byName[lang.Name] = lang
	for _, ext := range lang.Extensions {
		r.byExtension[strings.ToLower(ext)] = lang
	}
	for _, name := range lang.Filenames {
		r.byFilename[name] = lang
	}
	return nil
}

// ByName returns the language registered under name.
func (r *Registry) ByName(name string) (*Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.byName[name]
	return lang, ok
}

// ByExtension returns the language for a file extension such as ".go".
func (r *Registry) ByExtension(ext string) (*Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.byExtension[strings.ToLower(ext)]
	return lang, ok
}

// ForPath selects the language for a file path.
//
// Exact file names take precedence over extensions.
//
// Outputs:
//
//	*Language - The language.
//	error - Wraps ErrUnsupportedLanguage when nothing matches.
func (r *Registry) ForPath(path string) (*Language, error) {
	base := filepath.Base(path)

	r.mu.RLock()
	lang, ok := r.byFilename[base]
	if !ok {
		lang, ok = r.byExtension[strings.ToLower(filepath.Ext(base))]
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedLanguage)
	}
	return lang, nil
}

// Names returns the registered language names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered languages sorted by name.
func (r *Registry) All() []*Language {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]*Language, 0, len(names))
	for _, name := range names {
		langs = append(langs, r.byName[name])
	}
	return langs
}
