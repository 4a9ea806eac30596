// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/sitterlint/services/lint/scheduler"
)

// ErrFatal marks errors that abort a whole run. It is the scheduler's
// sentinel, so fatal engine errors stop the worker pool.
var ErrFatal = scheduler.ErrFatal

// ErrRuleFault is the cause recorded when a handler returns an error.
var ErrRuleFault = errors.New("rule fault")

// FatalError is a run-wide failure detected while linting one file.
type FatalError struct {
	// Path is the file being linted when the failure was detected.
	Path string

	// Err is the cause.
	Err error
}

// Error formats the failure.
func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns ErrFatal and the cause, so errors.Is matches both.
func (e *FatalError) Unwrap() []error {
	return []error{ErrFatal, e.Err}
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
