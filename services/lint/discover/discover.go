// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discover expands command-line paths into the files to lint.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/sitterlint/services/lint/language"
)

// ErrNoRoots is returned when Files is called without paths.
var ErrNoRoots = errors.New("no paths to lint")

// SkipDirectories are directory names never descended into.
var SkipDirectories = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"target":       true,
	"dist":         true,
}

// IgnoreFunc reports whether a path is excluded by configuration.
type IgnoreFunc func(path string) bool

// Options controls discovery.
type Options struct {
	// Languages decides which files are lintable. Required.
	Languages *language.Registry

	// Ignore excludes files and directories. Optional.
	Ignore IgnoreFunc
}

// SkipDir reports whether a directory below a walk root should be skipped:
// hidden directories and the names in SkipDirectories.
func SkipDir(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".") || SkipDirectories[name]
}

// SkipFile reports whether a file found by a walk should be skipped. Hidden
// files are skipped; the same file named on the command line is not.
func SkipFile(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Files returns the lintable files under roots, sorted and deduplicated.
//
// Description:
//
//	Directories are walked recursively, skipping SkipDir names, hidden
//	files, and paths the ignore function rejects. Files named explicitly are kept when
//	their language is known and they are not ignored; a named file with an
//	unknown language is an error, since the user asked for it.
//
// Inputs:
//
//	ctx - Checked between directory entries.
//	roots - Files or directories.
//	opts - Discovery options.
//
// Outputs:
//
//	[]string - Lintable file paths.
//	error - Non-nil for missing roots, walk failures, or cancellation.
func Files(ctx context.Context, roots []string, opts Options) ([]string, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	ignored := func(p string) bool { return opts.Ignore != nil && opts.Ignore(p) }

	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			if ignored(root) {
				continue
			}
			if _, err := opts.Languages.ForPath(root); err != nil {
				return nil, err
			}
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if p != root && (SkipDir(d.Name()) || ignored(p)) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || SkipFile(d.Name()) || ignored(p) {
				return nil
			}
			if _, err := opts.Languages.ForPath(p); err == nil {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	sort.Strings(files)
	return files, nil
}
