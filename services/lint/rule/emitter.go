// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/sitterlint/services/lint/filectx"
)

// EventSeparator joins an emitter name and an event name in
// Listener.Event.
const EventSeparator = "/"

// ErrInvalidEmitter indicates a structurally invalid emitter factory.
var ErrInvalidEmitter = errors.New("invalid emitter")

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_\-]*$`)

// Emitter derives named events from the traversal of one file.
//
// Description:
//
//	The engine walks the tree once per pass and calls EnterNode when it
//	reaches a node and LeaveNode after the node's children. Each call
//	returns the names of the events that fire on that node, which must be
//	among the factory's Events. Rules listen with Listener.Event; an event
//	returned by EnterNode is delivered like a query match on the node, one
//	returned by LeaveNode like a ":exit" kind listener.
//
// Thread Safety:
//
//	An Emitter is created per pass and used by one goroutine. It may keep
//	whatever state it needs between calls.
type Emitter interface {
	EnterNode(n *sitter.Node) []string
	LeaveNode(n *sitter.Node) []string
}

// EmitterFactory describes an emitter and creates one per pass.
//
// Example:
//
//	var Returns = &rule.EmitterFactory{
//	    Name:      "returns",
//	    Languages: []string{"go"},
//	    Events:    []string{"bare-return"},
//	    New: func(*filectx.File) rule.Emitter { return &returns{} },
//	}
type EmitterFactory struct {
	// Name identifies the emitter in Listener.Event.
	Name string

	// Languages lists the languages the emitter supports. Empty means all.
	Languages []string

	// Events are the event names the emitter may return.
	Events []string

	// New creates the emitter for one pass over file.
	New func(file *filectx.File) Emitter
}

// Validate checks the factory's structure.
func (f *EmitterFactory) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil emitter", ErrInvalidEmitter)
	}
	if !namePattern.MatchString(f.Name) {
		return fmt.Errorf("%w: name %q must be lowercase letters, digits, '-' or '_'", ErrInvalidEmitter, f.Name)
	}
	if f.New == nil {
		return fmt.Errorf("%w: %s: no constructor", ErrInvalidEmitter, f.Name)
	}
	if len(f.Events) == 0 {
		return fmt.Errorf("%w: %s: no events", ErrInvalidEmitter, f.Name)
	}
	seen := make(map[string]bool, len(f.Events))
	for _, ev := range f.Events {
		if !namePattern.MatchString(ev) {
			return fmt.Errorf("%w: %s: event %q must be lowercase letters, digits, '-' or '_'", ErrInvalidEmitter, f.Name, ev)
		}
		if seen[ev] {
			return fmt.Errorf("%w: %s: duplicate event %q", ErrInvalidEmitter, f.Name, ev)
		}
		seen[ev] = true
	}
	return nil
}

// SupportsLanguage reports whether the emitter runs on a language.
func (f *EmitterFactory) SupportsLanguage(lang string) bool {
	return len(f.Languages) == 0 || contains(f.Languages, lang)
}

// HasEvent reports whether the emitter declares an event.
func (f *EmitterFactory) HasEvent(event string) bool {
	return contains(f.Events, event)
}

// EventSelector returns the Listener.Event value for an emitter's event.
func EventSelector(emitter, event string) string {
	return emitter + EventSeparator + event
}

func validEvent(selector string) bool {
	emitter, event, ok := strings.Cut(selector, EventSeparator)
	return ok && namePattern.MatchString(emitter) && namePattern.MatchString(event)
}
