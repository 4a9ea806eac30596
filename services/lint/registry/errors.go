// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry failures.
var (
	// ErrDuplicateRule indicates a rule id is already registered.
	ErrDuplicateRule = errors.New("duplicate rule id")

	// ErrUnknownLanguage indicates a rule names a language that is not in
	// the language registry.
	ErrUnknownLanguage = errors.New("unknown language")

	// ErrInvalidQuery indicates a listener query does not compile for a
	// language, has no captures, or names a missing capture.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUnknownKind indicates a kind listener names a node kind the
	// grammar does not define.
	ErrUnknownKind = errors.New("unknown node kind")

	// ErrUnknownEmitter indicates an event listener names an emitter that
	// is not registered or does not support the language.
	ErrUnknownEmitter = errors.New("unknown emitter")

	// ErrUnknownEvent indicates an event listener names an event its
	// emitter does not declare.
	ErrUnknownEvent = errors.New("unknown emitter event")

	// ErrDuplicateEmitter indicates an emitter name is already registered.
	ErrDuplicateEmitter = errors.New("duplicate emitter")

	// ErrNoLanguages indicates a rule applies to none of the registered
	// languages.
	ErrNoLanguages = errors.New("rule supports no registered language")

	// ErrCorrupted indicates validated patterns failed to merge. This
	// means shared registry state is inconsistent and the run must stop.
	ErrCorrupted = errors.New("pattern registry corrupted")
)

// RegistrationError describes why a rule was rejected.
//
// Example:
//
//	if err := set.Register(r); err != nil {
//	    var regErr *RegistrationError
//	    if errors.As(err, &regErr) {
//	        fmt.Println(regErr.RuleID, regErr.Language, regErr.Listener)
//	    }
//	}
type RegistrationError struct {
	// RuleID is the rejected rule's id.
	RuleID string

	// Language is the language being validated, empty if not specific.
	Language string

	// Listener is the index of the offending listener, -1 if not specific.
	Listener int

	// Err is the underlying cause.
	Err error
}

// Error formats the rejection.
func (e *RegistrationError) Error() string {
	switch {
	case e.Language != "" && e.Listener >= 0:
		return fmt.Sprintf("rule %s: %s listener %d: %v", e.RuleID, e.Language, e.Listener, e.Err)
	case e.Listener >= 0:
		return fmt.Sprintf("rule %s: listener %d: %v", e.RuleID, e.Listener, e.Err)
	case e.Language != "":
		return fmt.Sprintf("rule %s: %s: %v", e.RuleID, e.Language, e.Err)
	default:
		return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}
