// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
)

// Exit codes.
const (
	ExitClean      = 0
	ExitViolations = 1
	ExitFailure    = 2
)

// ExitError carries a process exit code through cobra.
//
// # Description
//
// Commands return an ExitError to choose the exit code. Err, when set, is
// printed to stderr; a nil Err exits silently (the report already said
// what went wrong).
//
// # Example
//
//	return &ExitError{Code: ExitViolations}
//	return usageError(fmt.Errorf("unknown format %q", name))
type ExitError struct {
	// Code is the process exit code.
	Code int

	// Err is the underlying error, nil for a silent exit.
	Err error
}

// Error returns a formatted error message.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// usageError wraps err with ExitFailure.
func usageError(err error) error {
	return &ExitError{Code: ExitFailure, Err: err}
}
