// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/sitterlint/services/lint/filectx"
	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// LoopsEmitter is the name of the emitter built by Loops.
const LoopsEmitter = "loops"

// Events of the loops emitter.
const (
	EventLoopEnter   = "loop-enter"
	EventLoopLeave   = "loop-leave"
	EventDeferInLoop = "defer-in-loop"
)

type loopFrame int

const (
	frameLoop loopFrame = iota
	frameFunc
)

// loopTracker keeps the stack of loops and function bodies around the
// current node.
type loopTracker struct {
	stack []loopFrame
}

func (l *loopTracker) EnterNode(n *sitter.Node) []string {
	switch n.Type() {
	case "for_statement":
		l.stack = append(l.stack, frameLoop)
		return []string{EventLoopEnter}
	case "func_literal", "function_declaration", "method_declaration":
		l.stack = append(l.stack, frameFunc)
	case "defer_statement":
		if len(l.stack) > 0 && l.stack[len(l.stack)-1] == frameLoop {
			return []string{EventDeferInLoop}
		}
	}
	return nil
}

func (l *loopTracker) LeaveNode(n *sitter.Node) []string {
	switch n.Type() {
	case "for_statement":
		l.pop()
		return []string{EventLoopLeave}
	case "func_literal", "function_declaration", "method_declaration":
		l.pop()
	}
	return nil
}

func (l *loopTracker) pop() {
	if len(l.stack) > 0 {
		l.stack = l.stack[:len(l.stack)-1]
	}
}

// Loops emits events for Go loops: entering and leaving a for statement,
// and a defer statement whose nearest enclosing loop or function is a
// loop.
func Loops() *rule.EmitterFactory {
	return &rule.EmitterFactory{
		Name:      LoopsEmitter,
		Languages: []string{language.Go},
		Events:    []string{EventLoopEnter, EventLoopLeave, EventDeferInLoop},
		New:       func(*filectx.File) rule.Emitter { return &loopTracker{} },
	}
}

// NoDeferInLoop reports defer statements directly inside a loop body. The
// deferred call runs when the function returns, not per iteration.
func NoDeferInLoop() *rule.Rule {
	return &rule.Rule{
		ID:          "no-defer-in-loop",
		Description: "Defer inside a loop runs at function exit, not per iteration",
		Languages:   []string{language.Go},
		Severity:    rule.SeverityWarning,
		Messages: map[string]string{
			"deferInLoop": "'defer' in a loop runs when the function returns; wrap the body in a function",
		},
		Listeners: []rule.Listener{{
			Event: rule.EventSelector(LoopsEmitter, EventDeferInLoop),
			Handle: func(c *rule.Context, m rule.Match) error {
				keyword := c.File.FirstToken(m.Node, filectx.SkipOptions{})
				if keyword == nil {
					keyword = m.Node
				}
				c.ReportMessage(keyword, "deferInLoop", nil, nil)
				return nil
			},
		}},
	}
}
