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
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sitterlint/services/lint/filectx"
	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

func noop(*rule.Context, rule.Match) error { return nil }

func quietSet() *RuleSet {
	return NewRuleSet(language.Builtin(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func queryRule(id string, langs []string, queries ...string) *rule.Rule {
	r := &rule.Rule{ID: id, Languages: langs}
	for _, q := range queries {
		r.Listeners = append(r.Listeners, rule.Listener{Query: q, Handle: noop})
	}
	return r
}

// =============================================================================
// Registration
// =============================================================================

func TestRegister_Accepts(t *testing.T) {
	set := quietSet()
	require.NoError(t, set.Register(queryRule("foo", []string{"go", "rust"}, `((identifier) @c (#eq? @c "foo"))`)))

	assert.Equal(t, 1, set.Len())
	assert.True(t, set.Supports("foo", "go"))
	assert.True(t, set.Supports("foo", "rust"))
	assert.False(t, set.Supports("foo", "python"))
	assert.Equal(t, []string{"go", "rust"}, set.SupportedLanguages("foo"))
	assert.Empty(t, set.Rejected())
}

func TestRegister_Rejections(t *testing.T) {
	tests := []struct {
		name string
		rule *rule.Rule
		want error
	}{
		{"malformed query", queryRule("bad-query", []string{"go"}, `((identifier @c`), ErrInvalidQuery},
		{"unknown node type", queryRule("bad-node", []string{"go"}, `(no_such_node) @c`), ErrInvalidQuery},
		{"no captures", queryRule("no-capture", []string{"go"}, `(identifier)`), ErrInvalidQuery},
		{"unknown language", queryRule("bad-lang", []string{"cobol"}, `(identifier) @c`), ErrUnknownLanguage},
		{"missing listened capture", &rule.Rule{ID: "bad-capture", Languages: []string{"go"}, Listeners: []rule.Listener{
			{Query: `(identifier) @c`, Capture: "d", Handle: noop},
		}}, ErrInvalidQuery},
		{"unknown kind", &rule.Rule{ID: "bad-kind", Languages: []string{"go"}, Listeners: []rule.Listener{
			{Kind: "no_such_kind:exit", Handle: noop},
		}}, ErrUnknownKind},
		{"structurally invalid", &rule.Rule{ID: "Bad ID"}, rule.ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := quietSet()
			err := set.Register(tt.rule)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, IsRegistrationError(err))
			assert.Equal(t, 0, set.Len())
			require.Len(t, set.Rejected(), 1)
			assert.Len(t, set.Warnings(), 1)
		})
	}
}

func TestRegister_RejectionDoesNotAffectOthers(t *testing.T) {
	set := quietSet()
	accepted := set.RegisterAll(
		queryRule("good-one", []string{"go"}, `(identifier) @c`),
		queryRule("broken", []string{"go"}, `((`),
		queryRule("good-two", []string{"go"}, `(call_expression) @call`),
	)
	assert.Equal(t, 2, accepted)
	ids := []string{}
	for _, r := range set.Rules() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"good-one", "good-two"}, ids)

	rejected := set.Rejected()
	require.Len(t, rejected, 1)
	assert.Equal(t, "broken", rejected[0].RuleID)
	assert.Equal(t, "go", rejected[0].Language)
	assert.Equal(t, 0, rejected[0].Listener)
	assert.Contains(t, rejected[0].Error(), "rule broken: go listener 0")
}

func TestRegister_Duplicate(t *testing.T) {
	set := quietSet()
	require.NoError(t, set.Register(queryRule("dup", []string{"go"}, `(identifier) @c`)))
	err := set.Register(queryRule("dup", []string{"go"}, `(identifier) @c`))
	assert.True(t, errors.Is(err, ErrDuplicateRule))
	assert.Equal(t, 1, set.Len())
}

func TestRegister_AllLanguagesSkipsIncompatible(t *testing.T) {
	set := quietSet()
	// function_declaration exists in go and javascript but not, e.g., in css.
	require.NoError(t, set.Register(&rule.Rule{ID: "fn", Listeners: []rule.Listener{{Kind: "function_declaration", Handle: noop}}}))
	assert.True(t, set.Supports("fn", "go"))
	assert.True(t, set.Supports("fn", "javascript"))
	assert.False(t, set.Supports("fn", "css"))

	err := set.Register(&rule.Rule{ID: "nowhere", Listeners: []rule.Listener{{Kind: "definitely_not_a_kind", Handle: noop}}})
	assert.True(t, errors.Is(err, ErrNoLanguages))
}

func TestRegistrationError_Format(t *testing.T) {
	assert.Equal(t, "rule r: boom", (&RegistrationError{RuleID: "r", Listener: -1, Err: errors.New("boom")}).Error())
	assert.Equal(t, "rule r: go: boom", (&RegistrationError{RuleID: "r", Language: "go", Listener: -1, Err: errors.New("boom")}).Error())
	assert.Equal(t, "rule r: listener 2: boom", (&RegistrationError{RuleID: "r", Listener: 2, Err: errors.New("boom")}).Error())
}

// =============================================================================
// Matcher
// =============================================================================

func TestBuild_BindingsFollowRegistrationOrder(t *testing.T) {
	set := quietSet()
	require.NoError(t, set.Register(queryRule("first", []string{"go"}, `(identifier) @a (call_expression) @b`)))
	require.NoError(t, set.Register(&rule.Rule{ID: "second", Languages: []string{"go"}, Listeners: []rule.Listener{
		{Query: `(selector_expression field: (field_identifier) @f) @sel`, Capture: "f", Handle: noop},
		{Kind: "function_declaration:exit", Handle: noop},
	}}))
	require.NoError(t, set.Register(queryRule("rusty", []string{"rust"}, `(identifier) @c`)))

	goLang, _ := set.Languages().ByName("go")
	m, err := Build(set, goLang, nil)
	require.NoError(t, err)
	defer m.Close()

	require.False(t, m.Empty())
	require.Len(t, m.Rules, 2, "rust-only rule is not part of the go matcher")
	assert.Equal(t, "first", m.Rules[0].Rule.ID)
	assert.Equal(t, 1, m.Rules[1].Order)
	require.Equal(t, 4, m.PatternCount())

	b0, _ := m.Binding(0)
	b1, _ := m.Binding(1)
	b2, _ := m.Binding(2)
	b3, _ := m.Binding(3)
	assert.Equal(t, Binding{Rule: 0, Listener: 0, Capture: -1}, b0)
	assert.Equal(t, Binding{Rule: 0, Listener: 0, Capture: -1}, b1)
	assert.Equal(t, 1, b2.Rule)
	assert.Equal(t, "f", m.CaptureName(uint32(b2.Capture)))
	assert.Equal(t, Binding{Rule: 1, Listener: 1, Capture: -1, Kind: true, Exit: true}, b3)

	_, ok := m.Binding(4)
	assert.False(t, ok)
	assert.Equal(t, "", m.CaptureName(999))
}

func TestBuild_ActivationFilters(t *testing.T) {
	set := quietSet()
	require.NoError(t, set.Register(queryRule("a", []string{"go"}, `(identifier) @c`)))
	require.NoError(t, set.Register(queryRule("b", []string{"go"}, `(identifier) @c`)))
	goLang, _ := set.Languages().ByName("go")

	m, err := Build(set, goLang, Only{"b": true})
	require.NoError(t, err)
	defer m.Close()
	require.Len(t, m.Rules, 1)
	assert.Equal(t, "b", m.Rules[0].Rule.ID)
	assert.Equal(t, 1, m.Rules[0].Order)

	empty, err := Build(set, goLang, Only{})
	require.NoError(t, err)
	assert.True(t, empty.Empty())
	assert.Equal(t, 0, empty.PatternCount())
}

// =============================================================================
// Emitters
// =============================================================================

type silentEmitter struct{}

func (silentEmitter) EnterNode(*sitter.Node) []string { return nil }
func (silentEmitter) LeaveNode(*sitter.Node) []string { return nil }

func scopesEmitter(langs ...string) *rule.EmitterFactory {
	return &rule.EmitterFactory{
		Name:      "scopes",
		Languages: langs,
		Events:    []string{"enter-scope", "leave-scope"},
		New:       func(*filectx.File) rule.Emitter { return silentEmitter{} },
	}
}

func eventRule(id string, langs []string, events ...string) *rule.Rule {
	r := &rule.Rule{ID: id, Languages: langs}
	for _, ev := range events {
		r.Listeners = append(r.Listeners, rule.Listener{Event: ev, Handle: noop})
	}
	return r
}

func TestRegisterEmitter(t *testing.T) {
	set := quietSet()
	require.NoError(t, set.RegisterEmitter(scopesEmitter("go")))

	em, ok := set.Emitter("scopes")
	require.True(t, ok)
	assert.Equal(t, []string{"go"}, em.Languages)

	assert.ErrorIs(t, set.RegisterEmitter(scopesEmitter()), ErrDuplicateEmitter)
	assert.ErrorIs(t, set.RegisterEmitter(&rule.EmitterFactory{Name: "other", Events: []string{"x"}, Languages: []string{"cobol"},
		New: func(*filectx.File) rule.Emitter { return silentEmitter{} }}), ErrUnknownLanguage)
	assert.ErrorIs(t, set.RegisterEmitter(&rule.EmitterFactory{Name: "broken"}), rule.ErrInvalidEmitter)
	_, ok = set.Emitter("broken")
	assert.False(t, ok)
}

func TestRegister_EventListeners(t *testing.T) {
	set := quietSet()
	require.NoError(t, set.RegisterEmitter(scopesEmitter("go")))

	require.NoError(t, set.Register(eventRule("ok", []string{"go"}, "scopes/enter-scope", "scopes/leave-scope")))

	tests := []struct {
		name string
		rule *rule.Rule
		want error
	}{
		{"unknown emitter", eventRule("a", []string{"go"}, "nope/enter-scope"), ErrUnknownEmitter},
		{"unsupported language", eventRule("b", []string{"rust"}, "scopes/enter-scope"), ErrUnknownEmitter},
		{"unknown event", eventRule("c", []string{"go"}, "scopes/exit-scope"), ErrUnknownEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := set.Register(tt.rule)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsRegistrationError(err))
		})
	}

	// Without explicit languages the rule runs where the emitter does.
	require.NoError(t, set.Register(eventRule("anywhere", nil, "scopes/enter-scope")))
	assert.Equal(t, []string{"go"}, set.SupportedLanguages("anywhere"))
}

func TestBuild_EventBindings(t *testing.T) {
	set := quietSet()
	require.NoError(t, set.RegisterEmitter(scopesEmitter("go")))
	require.NoError(t, set.Register(queryRule("query", []string{"go"}, `(identifier) @id`)))
	require.NoError(t, set.Register(&rule.Rule{ID: "events", Languages: []string{"go"}, Listeners: []rule.Listener{
		{Kind: "block", Handle: noop},
		{Event: "scopes/leave-scope", Handle: noop},
		{Event: "scopes/enter-scope", Handle: noop},
	}}))
	goLang, _ := set.Languages().ByName("go")

	m, err := Build(set, goLang, nil)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 2, m.PatternCount())
	require.Len(t, m.Emitters, 1)
	assert.Equal(t, "scopes", m.Emitters[0].Name)
	assert.Equal(t, []EventBinding{
		{Rule: 1, Listener: 1, Emitter: 0, Event: "leave-scope"},
		{Rule: 1, Listener: 2, Emitter: 0, Event: "enter-scope"},
	}, m.Events)

	onlyEvents, err := Build(set, goLang, Only{"events": true})
	require.NoError(t, err)
	defer onlyEvents.Close()
	assert.False(t, onlyEvents.Empty())

	set2 := quietSet()
	require.NoError(t, set2.RegisterEmitter(scopesEmitter("go")))
	require.NoError(t, set2.Register(eventRule("only", []string{"go"}, "scopes/enter-scope")))
	eventsOnly, err := Build(set2, goLang, nil)
	require.NoError(t, err)
	assert.Nil(t, eventsOnly.Query)
	assert.False(t, eventsOnly.Empty())
	assert.Len(t, eventsOnly.Events, 1)
}

func TestCache_KeyChangesWithEmitters(t *testing.T) {
	set := quietSet()
	goLang, _ := set.Languages().ByName("go")
	before := Key(set, goLang, nil)
	require.NoError(t, set.RegisterEmitter(scopesEmitter("go")))
	assert.NotEqual(t, before, Key(set, goLang, nil))
}

// =============================================================================
// Cache
// =============================================================================

func TestCache_CompilesOncePerKey(t *testing.T) {
	set := quietSet()
	require.NoError(t, set.Register(queryRule("a", []string{"go", "python"}, `(identifier) @c`)))
	goLang, _ := set.Languages().ByName("go")
	pyLang, _ := set.Languages().ByName("python")

	cache := NewCache()
	defer cache.Clear()

	var wg sync.WaitGroup
	matchers := make([]*Matcher, 16)
	for i := range matchers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := cache.Get(context.Background(), set, goLang, nil)
			assert.NoError(t, err)
			matchers[i] = m
		}(i)
	}
	wg.Wait()

	for _, m := range matchers {
		assert.Same(t, matchers[0], m)
	}
	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Builds)
	assert.Equal(t, 1, stats.Entries)

	_, err := cache.Get(context.Background(), set, pyLang, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cache.Stats().Builds)
}

func TestCache_KeyChangesWithActivation(t *testing.T) {
	set := quietSet()
	require.NoError(t, set.Register(queryRule("a", []string{"go"}, `(identifier) @c`)))
	require.NoError(t, set.Register(queryRule("b", []string{"go"}, `(identifier) @c`)))
	goLang, _ := set.Languages().ByName("go")

	all := Key(set, goLang, AllActive{})
	onlyA := Key(set, goLang, Only{"a": true})
	assert.NotEqual(t, all, onlyA)
	assert.Equal(t, all, Key(set, goLang, AllActive{}))

	require.NoError(t, set.Register(queryRule("c", []string{"rust"}, `(identifier) @c`)))
	assert.NotEqual(t, all, Key(set, goLang, AllActive{}), "registration bumps the version")
}
