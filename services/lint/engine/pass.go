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
	"log/slog"
	"runtime/debug"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/sitterlint/services/lint/filectx"
	"github.com/AleutianAI/sitterlint/services/lint/registry"
	"github.com/AleutianAI/sitterlint/services/lint/report"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// event is one listener invocation derived from a query match.
type event struct {
	start   uint32
	end     uint32
	pattern int
	seq     int
	binding registry.Binding
	match   rule.Match
}

// instance is a rule's per-file state.
type instance struct {
	ctx      *rule.Context
	disabled bool
}

// pass runs every active rule over one File Context.
//
// Description:
//
//	The pass owns the rule instances for its file: each is created the
//	first time one of its listeners fires, receives all later matches in
//	source order, gets its end-of-file hook, and is dropped with the pass.
//
// Thread Safety:
//
//	Not safe for concurrent use. One pass belongs to one worker.
type pass struct {
	number    int
	file      *filectx.File
	matcher   *registry.Matcher
	collector *collector
	instances []*instance
	faults    []report.RuleFault
	logger    *slog.Logger
}

func newPass(number int, file *filectx.File, matcher *registry.Matcher, logger *slog.Logger) *pass {
	return &pass{
		number:    number,
		file:      file,
		matcher:   matcher,
		collector: newCollector(file, matcher.Rules, logger),
		instances: make([]*instance, len(matcher.Rules)),
		logger:    logger,
	}
}

// run traverses the file once and dispatches every match.
//
// Outputs:
//
//	[]collected - Finalized violations.
//	error - Non-nil only for run-fatal failures.
func (p *pass) run() ([]collected, error) {
	if p.matcher.Empty() || p.file.Root() == nil {
		return nil, nil
	}

	events, err := p.collectEvents()
	if err != nil {
		return nil, err
	}

	type pending struct {
		end uint32
		ev  event
	}
	var exits []pending
	flushUntil := func(ev *event) error {
		for len(exits) > 0 {
			top := exits[len(exits)-1]
			if ev != nil && ev.start < top.end && ev.end <= top.end {
				return nil
			}
			exits = exits[:len(exits)-1]
			if err := p.dispatch(top.ev); err != nil {
				return err
			}
		}
		return nil
	}

	for i := range events {
		ev := events[i]
		if err := flushUntil(&ev); err != nil {
			return nil, err
		}
		if ev.binding.Exit {
			exits = append(exits, pending{end: ev.end, ev: ev})
			continue
		}
		if err := p.dispatch(ev); err != nil {
			return nil, err
		}
	}
	if err := flushUntil(nil); err != nil {
		return nil, err
	}

	if err := p.endOfFile(); err != nil {
		return nil, err
	}
	return p.collector.finalize(), nil
}

// collectEvents executes the merged query and runs the emitters, then
// orders the resulting events by (start, pattern index, end descending,
// emission order). Emitter events order after every query pattern.
func (p *pass) collectEvents() ([]event, error) {
	var events []event
	emit := func(ev event) {
		ev.seq = len(events)
		events = append(events, ev)
	}

	if p.matcher.Query != nil {
		if err := p.collectMatches(emit); err != nil {
			return nil, err
		}
	}
	if err := p.collectEmitted(emit); err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := &events[i], &events[j]
		if a.start != b.start {
			return a.start < b.start
		}
		if a.pattern != b.pattern {
			return a.pattern < b.pattern
		}
		if a.end != b.end {
			return a.end > b.end
		}
		return a.seq < b.seq
	})
	return events, nil
}

// collectMatches turns the merged query's matches into listener events.
func (p *pass) collectMatches(emit func(event)) error {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(p.matcher.Query, p.file.Root())

	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, p.file.Source)
		if len(m.Captures) == 0 {
			continue
		}
		b, ok := p.matcher.Binding(int(m.PatternIndex))
		if !ok {
			return fmt.Errorf("%w: pattern %d has no binding", registry.ErrCorrupted, m.PatternIndex)
		}

		caps := make([]rule.Capture, len(m.Captures))
		for i, c := range m.Captures {
			caps[i] = rule.Capture{Name: p.matcher.CaptureName(c.Index), Node: c.Node}
		}

		switch {
		case b.Kind:
			node := m.Captures[0].Node
			kind, _ := p.matcher.Rules[b.Rule].Rule.Listeners[b.Listener].KindName()
			emit(event{
				start: node.StartByte(), end: node.EndByte(), pattern: int(m.PatternIndex), binding: b,
				match: rule.Match{Captures: []rule.Capture{{Name: kind, Node: node}}, Node: node, Exit: b.Exit},
			})
		case b.Capture >= 0:
			for _, c := range m.Captures {
				if int(c.Index) != b.Capture {
					continue
				}
				emit(event{
					start: c.Node.StartByte(), end: c.Node.EndByte(), pattern: int(m.PatternIndex), binding: b,
					match: rule.Match{Captures: caps, Node: c.Node},
				})
			}
		default:
			primary := m.Captures[0].Node
			for _, c := range m.Captures[1:] {
				if c.Node.StartByte() < primary.StartByte() ||
					(c.Node.StartByte() == primary.StartByte() && c.Node.EndByte() > primary.EndByte()) {
					primary = c.Node
				}
			}
			emit(event{
				start: primary.StartByte(), end: primary.EndByte(), pattern: int(m.PatternIndex), binding: b,
				match: rule.Match{Captures: caps, Node: primary},
			})
		}
	}

	return nil
}

// collectEmitted creates the matcher's emitters for this pass, drives them
// with one traversal of the file, and turns the events they return into
// listener events. Enter events are delivered like query matches on the
// node; leave events like ":exit" kind listeners. An emitter that panics
// is recorded as a fault and stops emitting for the rest of the file.
func (p *pass) collectEmitted(emit func(event)) error {
	if len(p.matcher.Events) == 0 {
		return nil
	}

	// listeners[emitter][event] indexes Matcher.Events.
	listeners := make([]map[string][]int, len(p.matcher.Emitters))
	for i, b := range p.matcher.Events {
		if listeners[b.Emitter] == nil {
			listeners[b.Emitter] = make(map[string][]int)
		}
		listeners[b.Emitter][b.Event] = append(listeners[b.Emitter][b.Event], i)
	}

	emitters := make([]rule.Emitter, len(p.matcher.Emitters))
	for i, f := range p.matcher.Emitters {
		err := p.guard(emitterFaultID(f.Name), func() error {
			emitters[i] = f.New(p.file)
			return nil
		})
		if err != nil {
			if IsFatal(err) {
				return err
			}
			emitters[i] = nil
		}
	}

	base := p.matcher.PatternCount()
	visit := func(leave bool) func(*sitter.Node) error {
		return func(n *sitter.Node) error {
			for i, em := range emitters {
				if em == nil {
					continue
				}
				var names []string
				err := p.guard(emitterFaultID(p.matcher.Emitters[i].Name), func() error {
					if leave {
						names = em.LeaveNode(n)
					} else {
						names = em.EnterNode(n)
					}
					return nil
				})
				if err != nil {
					if IsFatal(err) {
						return err
					}
					emitters[i] = nil
					continue
				}
				for _, name := range names {
					for _, bi := range listeners[i][name] {
						b := p.matcher.Events[bi]
						emit(event{
							start: n.StartByte(), end: n.EndByte(), pattern: base + bi,
							binding: registry.Binding{Rule: b.Rule, Listener: b.Listener, Capture: -1, Exit: leave},
							match:   rule.Match{Captures: []rule.Capture{{Name: name, Node: n}}, Node: n, Exit: leave},
						})
					}
				}
			}
			return nil
		}
	}
	return p.file.Traverse(p.file.Root(), visit(false), visit(true))
}

// emitterFaultID is the RuleID under which emitter faults are reported.
func emitterFaultID(name string) string {
	return "emitter:" + name
}

// instance returns the rule instance, creating it on first use.
func (p *pass) instance(ruleIdx int) *instance {
	if inst := p.instances[ruleIdx]; inst != nil {
		return inst
	}
	active := p.matcher.Rules[ruleIdx]
	inst := &instance{}
	p.instances[ruleIdx] = inst

	var state any
	if active.Rule.NewState != nil {
		err := p.guard(active.Rule.ID, func() error {
			state = active.Rule.NewState()
			return nil
		})
		if err != nil {
			inst.disabled = true
		}
	}
	inst.ctx = rule.NewContext(p.file, active.Rule, active.Severity, active.Options, state, p.collector.reporter(ruleIdx))
	return inst
}

func (p *pass) dispatch(ev event) error {
	inst := p.instance(ev.binding.Rule)
	if inst.disabled {
		return nil
	}
	active := p.matcher.Rules[ev.binding.Rule]
	handle := active.Rule.Listeners[ev.binding.Listener].Handle
	if err := p.guard(active.Rule.ID, func() error { return handle(inst.ctx, ev.match) }); err != nil {
		if IsFatal(err) {
			return err
		}
		inst.disabled = true
	}
	return nil
}

// endOfFile notifies every rule that has an instance, in registration
// order, then drops the instances.
func (p *pass) endOfFile() error {
	defer func() {
		for i := range p.instances {
			p.instances[i] = nil
		}
	}()
	for i, inst := range p.instances {
		if inst == nil || inst.disabled {
			continue
		}
		active := p.matcher.Rules[i]
		if active.Rule.OnFileEnd == nil {
			continue
		}
		if err := p.guard(active.Rule.ID, func() error { return active.Rule.OnFileEnd(inst.ctx) }); err != nil && IsFatal(err) {
			return err
		}
	}
	return nil
}

// guard runs fn, converting errors and panics into rule faults.
//
// Fatal errors and fatal panic values are returned unrecorded so the run
// can abort; any other failure is recorded and returned.
func (p *pass) guard(ruleID string, fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if perr, ok := r.(error); ok && IsFatal(perr) {
			err = &FatalError{Path: p.file.Path, Err: perr}
			return
		}
		p.logger.Warn("rule panicked",
			slog.String("rule", ruleID),
			slog.String("path", p.file.Path),
			slog.Any("panic", r),
			slog.String("stack", string(debug.Stack())))
		p.faults = append(p.faults, report.RuleFault{RuleID: ruleID, Message: fmt.Sprint(r), Panic: true, Pass: p.number})
		err = fmt.Errorf("%w: %s panicked: %v", ErrRuleFault, ruleID, r)
	}()

	if err := fn(); err != nil {
		if IsFatal(err) {
			var fatal *FatalError
			if errors.As(err, &fatal) {
				return err
			}
			return &FatalError{Path: p.file.Path, Err: err}
		}
		p.logger.Warn("rule failed",
			slog.String("rule", ruleID),
			slog.String("path", p.file.Path),
			slog.String("error", err.Error()))
		p.faults = append(p.faults, report.RuleFault{RuleID: ruleID, Message: err.Error(), Pass: p.number})
		return fmt.Errorf("%w: %w", ErrRuleFault, err)
	}
	return nil
}
