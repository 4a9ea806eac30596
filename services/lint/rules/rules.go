// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules holds the built-in lint rules.
package rules

import (
	"github.com/AleutianAI/sitterlint/services/lint/registry"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// All returns fresh instances of every built-in rule in registration
// order.
func All() []*rule.Rule {
	return []*rule.Rule{
		ReplaceFooWithBar(),
		NoLazyStatic(),
		NoDefaultDefault(),
		PreferImplParam(),
		NoDuplicateFunction(),
		MaxTodoComments(),
		NoDeferInLoop(),
	}
}

// Emitters returns the built-in emitter factories.
func Emitters() []*rule.EmitterFactory {
	return []*rule.EmitterFactory{
		Loops(),
	}
}

// RegisterAll registers the built-in emitters, then the built-in rules,
// with set.
//
// Outputs:
//
//	int - The number of rules accepted. Rejections are recorded on set.
func RegisterAll(set *registry.RuleSet) int {
	for _, em := range Emitters() {
		// A rejected emitter rejects the rules listening to it.
		_ = set.RegisterEmitter(em)
	}
	return set.RegisterAll(All()...)
}
