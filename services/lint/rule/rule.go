// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rule defines how lint rules are written.
//
// A Rule is an immutable description: an id, the languages it applies to,
// and a list of listeners. Each listener is a tree-sitter query, a node
// kind, or an event from a registered Emitter, plus a handler that receives
// a Context and a Match. The engine
// merges every active rule's listeners into one query per language, walks
// each file once, and routes matches to handlers.
//
// Example:
//
//	var NoFoo = &rule.Rule{
//	    ID:        "no-foo",
//	    Languages: []string{"go"},
//	    Fixable:   true,
//	    Severity:  rule.SeverityError,
//	    Listeners: []rule.Listener{{
//	        Query: `((identifier) @id (#eq? @id "foo"))`,
//	        Handle: func(c *rule.Context, m rule.Match) error {
//	            c.ReportNode(m.Node, "use bar", rule.NewFix(rule.ReplaceNode(m.Node, "bar")))
//	            return nil
//	        },
//	    }},
//	}
//
// Per-file state: NewState is called at most once per (file, rule), the
// first time one of the rule's listeners fires in that file. The value is
// available as Context.State for every later match and for OnFileEnd, and
// is dropped when the file is done.
package rule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ExitSuffix marks a node-kind listener that fires when the traversal
// leaves the node instead of when it enters it.
const ExitSuffix = ":exit"

// ErrInvalidRule indicates a structurally invalid rule definition.
var ErrInvalidRule = errors.New("invalid rule")

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-/]*$`)

// HandleFunc processes one match. A returned error is recorded as a rule
// fault for the current file and disables the rule for the rest of it.
type HandleFunc func(c *Context, m Match) error

// EndFunc runs once per file after the traversal for rules that have state.
type EndFunc func(c *Context) error

// Listener binds a pattern to a handler.
//
// Exactly one of Query, Kind or Event must be set.
type Listener struct {
	// Query is a tree-sitter query. It must contain at least one capture.
	Query string

	// Capture, when set, makes the listener fire once per node captured
	// under this name rather than once per match.
	Capture string

	// Kind is a node kind such as "function_declaration". A trailing
	// ":exit" fires after every match inside the node has been delivered.
	Kind string

	// Event names an emitter event as "emitter/event". The emitter must be
	// registered before the rule. See EventSelector.
	Event string

	// Languages narrows the rule's languages for this listener. Empty
	// means every language of the rule.
	Languages []string

	// Handle is called for each delivered match.
	Handle HandleFunc
}

// KindName splits Kind into the node kind and whether it is an exit
// listener.
func (l Listener) KindName() (kind string, exit bool) {
	if strings.HasSuffix(l.Kind, ExitSuffix) {
		return strings.TrimSuffix(l.Kind, ExitSuffix), true
	}
	return l.Kind, false
}

// EventName splits Event into the emitter name and the event name.
func (l Listener) EventName() (emitter, event string) {
	emitter, event, _ = strings.Cut(l.Event, EventSeparator)
	return emitter, event
}

// AppliesTo reports whether the listener is active for a language.
func (l Listener) AppliesTo(lang string) bool {
	return len(l.Languages) == 0 || contains(l.Languages, lang)
}

// Rule is an immutable lint rule definition.
//
// Thread Safety:
//
//	Rules are shared across workers and must not be mutated after
//	registration. Mutable data belongs in per-file state (NewState).
type Rule struct {
	// ID uniquely identifies the rule ("no-lazy-static").
	ID string

	// Description is a one-line summary shown by `sitterlint rules`.
	Description string

	// URL optionally points at rule documentation.
	URL string

	// Languages lists the languages the rule applies to. Empty means all.
	Languages []string

	// Fixable must be true for the rule's fixes to be considered.
	Fixable bool

	// Severity is the default severity; configuration may override it.
	Severity Severity

	// Messages maps message ids to templates with {{name}} placeholders.
	Messages map[string]string

	// DefaultOptions are used when configuration supplies none.
	DefaultOptions map[string]any

	// NewState creates per-file state. Optional.
	NewState func() any

	// Listeners are the rule's patterns and handlers.
	Listeners []Listener

	// OnFileEnd runs after the traversal if the rule has state. Optional.
	OnFileEnd EndFunc
}

// SupportsLanguage reports whether the rule applies to a language.
func (r *Rule) SupportsLanguage(lang string) bool {
	if len(r.Languages) == 0 {
		return true
	}
	return contains(r.Languages, lang)
}

// Validate checks the language-independent structure of the rule.
//
// Query compilation is checked separately per language by the registry.
func (r *Rule) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil rule", ErrInvalidRule)
	}
	if !idPattern.MatchString(r.ID) {
		return fmt.Errorf("%w: id %q must be lowercase and contain only letters, digits, '-', '_' or '/'", ErrInvalidRule, r.ID)
	}
	if len(r.Listeners) == 0 {
		return fmt.Errorf("%w: %s: no listeners", ErrInvalidRule, r.ID)
	}
	for i, l := range r.Listeners {
		switch {
		case l.Handle == nil:
			return fmt.Errorf("%w: %s: listener %d has no handler", ErrInvalidRule, r.ID, i)
		case countSet(l.Query, l.Kind, l.Event) == 0:
			return fmt.Errorf("%w: %s: listener %d needs a query, a kind or an event", ErrInvalidRule, r.ID, i)
		case countSet(l.Query, l.Kind, l.Event) > 1:
			return fmt.Errorf("%w: %s: listener %d sets more than one of query, kind and event", ErrInvalidRule, r.ID, i)
		case l.Query == "" && l.Capture != "":
			return fmt.Errorf("%w: %s: listener %d: capture is only valid with a query", ErrInvalidRule, r.ID, i)
		case l.Event != "" && !validEvent(l.Event):
			return fmt.Errorf("%w: %s: listener %d: event %q must be \"emitter/event\"", ErrInvalidRule, r.ID, i, l.Event)
		}
		for _, lang := range l.Languages {
			if !r.SupportsLanguage(lang) {
				return fmt.Errorf("%w: %s: listener %d language %q is not a rule language", ErrInvalidRule, r.ID, i, lang)
			}
		}
	}
	if r.Severity < SeverityInfo || r.Severity > SeverityError {
		return fmt.Errorf("%w: %s: unknown severity %d", ErrInvalidRule, r.ID, int(r.Severity))
	}
	return nil
}

// Message renders a message template with data.
//
// Unknown ids render as the id itself.
func (r *Rule) Message(id string, data map[string]string) string {
	tmpl, ok := r.Messages[id]
	if !ok {
		tmpl = id
	}
	return Interpolate(tmpl, data)
}

// Interpolate replaces {{name}} and {{ name }} placeholders.
func Interpolate(tmpl string, data map[string]string) string {
	if len(data) == 0 || !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	pairs := make([]string, 0, len(data)*4)
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v, "{{ "+k+" }}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func countSet(values ...string) int {
	n := 0
	for _, v := range values {
		if v != "" {
			n++
		}
	}
	return n
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
