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
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// KindCapture is the capture name used by generated node-kind patterns.
const KindCapture = "sitterlint.kind"

// ActiveRule is a rule as configured for one matcher.
type ActiveRule struct {
	// Rule is the rule definition.
	Rule *rule.Rule

	// Order is the rule's registration index in the RuleSet.
	Order int

	// Severity is the effective severity.
	Severity rule.Severity

	// Options are the effective options, nil for the rule defaults.
	Options map[string]any
}

// Binding maps one pattern of the merged query back to its listener.
type Binding struct {
	// Rule indexes Matcher.Rules.
	Rule int

	// Listener indexes the rule's Listeners.
	Listener int

	// Capture is the capture id a per-capture listener listens on, or -1.
	Capture int

	// Kind is set for generated node-kind patterns.
	Kind bool

	// Exit is set for ":exit" kind listeners.
	Exit bool
}

// EventBinding maps one emitter event back to its listener.
type EventBinding struct {
	// Rule indexes Matcher.Rules.
	Rule int

	// Listener indexes the rule's Listeners.
	Listener int

	// Emitter indexes Matcher.Emitters.
	Emitter int

	// Event is the event name.
	Event string
}

// Matcher is the compiled form of the active rules for one language.
//
// Thread Safety:
//
//	Immutable after Build. The Query may be executed by many query
//	cursors concurrently.
type Matcher struct {
	// Language is the language the query was compiled for.
	Language *language.Language

	// Rules are the active rules in registration order.
	Rules []ActiveRule

	// Query is the merged query, nil when no rule is active.
	Query *sitter.Query

	// Source is the merged query text.
	Source string

	// Emitters are the emitter factories used by event listeners, in
	// first-use order.
	Emitters []*rule.EmitterFactory

	// Events are the event listener bindings. They order after every query
	// pattern, in rule registration order, then listener order.
	Events []EventBinding

	bindings     []Binding
	captureNames []string
}

// Empty reports whether the matcher has no patterns and no event
// listeners.
func (m *Matcher) Empty() bool {
	return m.Query == nil && len(m.Events) == 0
}

// PatternCount returns the number of patterns in the merged query.
func (m *Matcher) PatternCount() int {
	return len(m.bindings)
}

// Binding returns the listener bound to a pattern index.
func (m *Matcher) Binding(pattern int) (Binding, bool) {
	if pattern < 0 || pattern >= len(m.bindings) {
		return Binding{}, false
	}
	return m.bindings[pattern], true
}

// CaptureName returns the name of a capture id.
func (m *Matcher) CaptureName(id uint32) string {
	if int(id) >= len(m.captureNames) {
		return ""
	}
	return m.captureNames[id]
}

// Close releases the compiled query.
//
// Only call Close once no worker can still be using the matcher.
func (m *Matcher) Close() {
	if m.Query != nil {
		m.Query.Close()
		m.Query = nil
	}
}

// Build compiles the active rules of set for lang into a Matcher.
//
// Description:
//
//	Every listener that applies to lang contributes its patterns in rule
//	registration order, then listener order. Kind listeners contribute a
//	generated "(kind) @sitterlint.kind" pattern. Event listeners become
//	EventBindings on the emitters they name. The individual queries
//	were validated at registration, so a failure to compile the merged
//	query is reported as ErrCorrupted.
//
// Inputs:
//
//	set - The registered rules.
//	lang - The target language.
//	act - Activation filter. Nil activates every rule.
//
// Outputs:
//
//	*Matcher - The compiled matcher.
//	error - Wraps ErrCorrupted if the merged query is inconsistent.
func Build(set *RuleSet, lang *language.Language, act Activation) (*Matcher, error) {
	if act == nil {
		act = AllActive{}
	}
	entries, _ := set.snapshot()

	m := &Matcher{Language: lang}
	var text strings.Builder
	var pendingCapture []string
	emitterIdx := make(map[string]int)

	for _, e := range entries {
		id := e.rule.ID
		if !e.languages[lang.Name] || !act.IsActive(id) {
			continue
		}
		ruleIdx := len(m.Rules)
		m.Rules = append(m.Rules, ActiveRule{
			Rule:     e.rule,
			Order:    e.order,
			Severity: act.Severity(id, e.rule.Severity),
			Options:  mergeOptions(e.rule.DefaultOptions, act.Options(id)),
		})

		for li, l := range e.rule.Listeners {
			if !l.AppliesTo(lang.Name) {
				continue
			}
			if l.Event != "" {
				name, event := l.EventName()
				idx, ok := emitterIdx[name]
				if !ok {
					em, found := set.Emitter(name)
					if !found {
						return nil, fmt.Errorf("%w: rule %s listener %d: emitter %q is not registered", ErrCorrupted, id, li, name)
					}
					idx = len(m.Emitters)
					emitterIdx[name] = idx
					m.Emitters = append(m.Emitters, em)
				}
				m.Events = append(m.Events, EventBinding{Rule: ruleIdx, Listener: li, Emitter: idx, Event: event})
				continue
			}
			if l.Kind != "" {
				kind, exit := l.KindName()
				fmt.Fprintf(&text, "(%s) @%s\n", kind, KindCapture)
				m.bindings = append(m.bindings, Binding{Rule: ruleIdx, Listener: li, Capture: -1, Kind: true, Exit: exit})
				pendingCapture = append(pendingCapture, "")
				continue
			}

			q, err := sitter.NewQuery([]byte(l.Query), lang.Grammar)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %s listener %d no longer compiles for %s: %v", ErrCorrupted, id, li, lang.Name, err)
			}
			patterns := int(q.PatternCount())
			q.Close()

			text.WriteString(l.Query)
			text.WriteString("\n")
			for p := 0; p < patterns; p++ {
				m.bindings = append(m.bindings, Binding{Rule: ruleIdx, Listener: li, Capture: -1})
				pendingCapture = append(pendingCapture, l.Capture)
			}
		}
	}

	if len(m.bindings) == 0 {
		return m, nil
	}

	m.Source = text.String()
	q, err := sitter.NewQuery([]byte(m.Source), lang.Grammar)
	if err != nil {
		return nil, fmt.Errorf("%w: merged query for %s: %v", ErrCorrupted, lang.Name, err)
	}
	if int(q.PatternCount()) != len(m.bindings) {
		q.Close()
		return nil, fmt.Errorf("%w: merged query for %s has %d patterns, want %d", ErrCorrupted, lang.Name, q.PatternCount(), len(m.bindings))
	}
	m.Query = q

	m.captureNames = make([]string, q.CaptureCount())
	for id := range m.captureNames {
		m.captureNames[id] = q.CaptureNameForId(uint32(id))
	}
	for i, name := range pendingCapture {
		if name == "" {
			continue
		}
		id := captureID(q, name)
		if id < 0 {
			m.Close()
			return nil, fmt.Errorf("%w: capture @%s missing from merged query for %s", ErrCorrupted, name, lang.Name)
		}
		m.bindings[i].Capture = id
	}
	return m, nil
}

// mergeOptions overlays configured options on a rule's defaults. It returns
// nil when nothing is configured so the rule sees its defaults unchanged.
func mergeOptions(defaults, configured map[string]any) map[string]any {
	if len(configured) == 0 {
		return nil
	}
	out := make(map[string]any, len(defaults)+len(configured))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range configured {
		out[k] = v
	}
	return out
}
