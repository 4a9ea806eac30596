// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry holds the registered rules and compiles them into one
// merged tree-sitter query per language.
//
// # Registration
//
// RuleSet.Register validates a rule against every language it applies to.
// A rule that fails validation is rejected with a RegistrationError and
// recorded in Rejected; other rules are unaffected.
//
// # Emitters
//
// RuleSet.RegisterEmitter adds an rule.EmitterFactory whose events rules
// can listen to. Emitters must be registered before the rules that use
// them; a listener naming an unknown emitter or event rejects its rule.
//
// # Matchers
//
// A Matcher is the compiled form of the active rules for one language: a
// single multi-pattern query plus a table mapping each pattern index back
// to its (rule, listener). Pattern indices follow rule registration order,
// then listener order, so the index doubles as the tie-break when two
// matches start at the same offset.
//
// Matchers are immutable and shared by all workers. Cache compiles each
// (language, active rule set) combination exactly once, even when many
// workers ask for it at the same time.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

type entry struct {
	rule      *rule.Rule
	order     int
	languages map[string]bool
}

// Option configures a RuleSet.
type Option func(*RuleSet)

// WithLogger sets the logger used for rejection warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *RuleSet) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// RuleSet is the set of registered rules.
//
// Thread Safety:
//
//	Safe for concurrent use. Rules are expected to be registered before a
//	run starts; registering during a run only affects matchers built
//	afterwards.
type RuleSet struct {
	mu       sync.RWMutex
	langs    *language.Registry
	entries  []*entry
	byID     map[string]*entry
	rejected []*RegistrationError
	emitters map[string]*rule.EmitterFactory
	version  uint64
	logger   *slog.Logger
}

// NewRuleSet creates an empty RuleSet validating against langs.
func NewRuleSet(langs *language.Registry, opts ...Option) *RuleSet {
	s := &RuleSet{
		langs:    langs,
		byID:     make(map[string]*entry),
		emitters: make(map[string]*rule.EmitterFactory),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Languages returns the language registry rules are validated against.
func (s *RuleSet) Languages() *language.Registry {
	return s.langs
}

// Register validates and adds a rule.
//
// Description:
//
//	Checks the rule's structure, that its id is unique, that every
//	language it names is known, and that each listener compiles for each
//	applicable language with at least one capture. Rules without explicit
//	languages are registered for every language where all their
//	listeners compile.
//
// Inputs:
//
//	r - The rule. Must not be mutated afterwards.
//
// Outputs:
//
//	error - A *RegistrationError when the rule is rejected.
func (s *RuleSet) Register(r *rule.Rule) error {
	id := ""
	if r != nil {
		id = r.ID
	}
	if err := r.Validate(); err != nil {
		return s.reject(&RegistrationError{RuleID: id, Listener: -1, Err: err})
	}

	s.mu.RLock()
	_, dup := s.byID[r.ID]
	s.mu.RUnlock()
	if dup {
		return s.reject(&RegistrationError{RuleID: r.ID, Listener: -1, Err: ErrDuplicateRule})
	}

	supported, regErr := s.validateLanguages(r)
	if regErr != nil {
		return s.reject(regErr)
	}

	s.mu.Lock()
	if _, dup := s.byID[r.ID]; dup {
		s.mu.Unlock()
		return s.reject(&RegistrationError{RuleID: r.ID, Listener: -1, Err: ErrDuplicateRule})
	}
	e := &entry{rule: r, order: len(s.entries), languages: supported}
	s.entries = append(s.entries, e)
	s.byID[r.ID] = e
	s.version++
	s.mu.Unlock()
	return nil
}

// RegisterAll registers each rule and returns the number accepted.
func (s *RuleSet) RegisterAll(rules ...*rule.Rule) int {
	accepted := 0
	for _, r := range rules {
		if s.Register(r) == nil {
			accepted++
		}
	}
	return accepted
}

// RegisterEmitter validates and adds an emitter factory.
//
// Description:
//
//	Checks the factory's structure, that its name is unique, and that
//	every language it names is known.
//
// Inputs:
//
//	f - The factory. Must not be mutated afterwards.
//
// Outputs:
//
//	error - Wraps rule.ErrInvalidEmitter, ErrDuplicateEmitter or
//	        ErrUnknownLanguage when the emitter is rejected.
func (s *RuleSet) RegisterEmitter(f *rule.EmitterFactory) error {
	if err := f.Validate(); err != nil {
		return s.rejectEmitter(f, err)
	}
	for _, name := range f.Languages {
		if _, ok := s.langs.ByName(name); !ok {
			return s.rejectEmitter(f, fmt.Errorf("%w: %q", ErrUnknownLanguage, name))
		}
	}

	s.mu.Lock()
	if _, dup := s.emitters[f.Name]; dup {
		s.mu.Unlock()
		return s.rejectEmitter(f, fmt.Errorf("%w: %s", ErrDuplicateEmitter, f.Name))
	}
	s.emitters[f.Name] = f
	s.version++
	s.mu.Unlock()
	return nil
}

func (s *RuleSet) rejectEmitter(f *rule.EmitterFactory, err error) error {
	name := ""
	if f != nil {
		name = f.Name
	}
	s.logger.Warn("emitter rejected",
		slog.String("emitter", name),
		slog.String("error", err.Error()))
	return err
}

// Emitter returns a registered emitter factory by name.
func (s *RuleSet) Emitter(name string) (*rule.EmitterFactory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.emitters[name]
	return f, ok
}

func (s *RuleSet) reject(err *RegistrationError) error {
	s.mu.Lock()
	s.rejected = append(s.rejected, err)
	s.mu.Unlock()
	s.logger.Warn("rule rejected",
		slog.String("rule", err.RuleID),
		slog.String("error", err.Error()))
	return err
}

func (s *RuleSet) validateLanguages(r *rule.Rule) (map[string]bool, *RegistrationError) {
	explicit := len(r.Languages) > 0

	var candidates []*language.Language
	if explicit {
		for _, name := range r.Languages {
			lang, ok := s.langs.ByName(name)
			if !ok {
				return nil, &RegistrationError{RuleID: r.ID, Language: name, Listener: -1, Err: ErrUnknownLanguage}
			}
			candidates = append(candidates, lang)
		}
	} else {
		candidates = s.langs.All()
	}

	supported := make(map[string]bool, len(candidates))
	var lastErr *RegistrationError
	for _, lang := range candidates {
		if err := s.validateFor(r, lang); err != nil {
			if explicit {
				return nil, err
			}
			lastErr = err
			continue
		}
		supported[lang.Name] = true
	}
	if len(supported) == 0 {
		cause := ErrNoLanguages
		if lastErr != nil {
			cause = fmt.Errorf("%w: %w", ErrNoLanguages, lastErr)
		}
		return nil, &RegistrationError{RuleID: r.ID, Listener: -1, Err: cause}
	}
	return supported, nil
}

func (s *RuleSet) validateFor(r *rule.Rule, lang *language.Language) *RegistrationError {
	for i, l := range r.Listeners {
		if !l.AppliesTo(lang.Name) {
			continue
		}
		fail := func(err error) *RegistrationError {
			return &RegistrationError{RuleID: r.ID, Language: lang.Name, Listener: i, Err: err}
		}

		if l.Kind != "" {
			kind, _ := l.KindName()
			if !lang.HasKind(kind) {
				return fail(fmt.Errorf("%w: %q", ErrUnknownKind, kind))
			}
			continue
		}

		if l.Event != "" {
			name, event := l.EventName()
			em, ok := s.Emitter(name)
			switch {
			case !ok:
				return fail(fmt.Errorf("%w: %q", ErrUnknownEmitter, name))
			case !em.SupportsLanguage(lang.Name):
				return fail(fmt.Errorf("%w: %q does not support %s", ErrUnknownEmitter, name, lang.Name))
			case !em.HasEvent(event):
				return fail(fmt.Errorf("%w: %q has no event %q", ErrUnknownEvent, name, event))
			}
			continue
		}

		q, err := sitter.NewQuery([]byte(l.Query), lang.Grammar)
		if err != nil {
			return fail(fmt.Errorf("%w: %v", ErrInvalidQuery, err))
		}
		patterns, captures := q.PatternCount(), q.CaptureCount()
		hasCapture := l.Capture == "" || captureID(q, l.Capture) >= 0
		q.Close()

		switch {
		case patterns == 0:
			return fail(fmt.Errorf("%w: no patterns", ErrInvalidQuery))
		case captures == 0:
			return fail(fmt.Errorf("%w: query has no captures", ErrInvalidQuery))
		case !hasCapture:
			return fail(fmt.Errorf("%w: capture @%s not found", ErrInvalidQuery, l.Capture))
		}
	}
	return nil
}

func captureID(q *sitter.Query, name string) int {
	for id := uint32(0); id < q.CaptureCount(); id++ {
		if q.CaptureNameForId(id) == name {
			return int(id)
		}
	}
	return -1
}

// Rules returns the accepted rules in registration order.
func (s *RuleSet) Rules() []*rule.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*rule.Rule, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.rule
	}
	return out
}

// Lookup returns an accepted rule by id.
func (s *RuleSet) Lookup(id string) (*rule.Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return e.rule, true
}

// Supports reports whether an accepted rule runs on a language.
func (s *RuleSet) Supports(id, lang string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	return ok && e.languages[lang]
}

// SupportedLanguages returns the languages an accepted rule runs on, in
// sorted order.
func (s *RuleSet) SupportedLanguages(id string) []string {
	s.mu.RLock()
	e, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	var out []string
	for _, name := range s.langs.Names() {
		if e.languages[name] {
			out = append(out, name)
		}
	}
	return out
}

// Len returns the number of accepted rules.
func (s *RuleSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Rejected returns the registration errors recorded so far.
func (s *RuleSet) Rejected() []*RegistrationError {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*RegistrationError, len(s.rejected))
	copy(out, s.rejected)
	return out
}

// Warnings renders the registration errors as report warnings.
func (s *RuleSet) Warnings() []string {
	rejected := s.Rejected()
	out := make([]string, 0, len(rejected))
	for _, err := range rejected {
		out = append(out, err.Error())
	}
	return out
}

// IsRegistrationError reports whether err is or wraps a RegistrationError.
func IsRegistrationError(err error) bool {
	var regErr *RegistrationError
	return errors.As(err, &regErr)
}

func (s *RuleSet) snapshot() ([]*entry, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entry, len(s.entries))
	copy(out, s.entries)
	return out, s.version
}
