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
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// NoLazyStatic reports lazy_static! invocations.
func NoLazyStatic() *rule.Rule {
	return &rule.Rule{
		ID:          "no-lazy-static",
		Description: "Prefer OnceCell/LazyLock to the lazy_static! macro",
		Languages:   []string{language.Rust},
		Severity:    rule.SeverityWarning,
		Listeners: []rule.Listener{{
			Query: `((macro_invocation
			           macro: (identifier) @c (#eq? @c "lazy_static")))`,
			Handle: func(c *rule.Context, m rule.Match) error {
				c.ReportNode(m.Node, "Prefer 'OnceCell::*::Lazy' to 'lazy_static!()'", nil)
				return nil
			},
		}},
	}
}

// NoDefaultDefault reports Default::default() calls and replaces them
// with _d().
func NoDefaultDefault() *rule.Rule {
	return &rule.Rule{
		ID:          "no-default-default",
		Description: "Use _d() instead of Default::default()",
		Languages:   []string{language.Rust},
		Fixable:     true,
		Severity:    rule.SeverityWarning,
		Listeners: []rule.Listener{{
			Query: `((call_expression
			           function: (scoped_identifier
			             path: (identifier) @first (#eq? @first "Default")
			             name: (identifier) @second (#eq? @second "default"))) @c)`,
			Capture: "c",
			Handle: func(c *rule.Context, m rule.Match) error {
				c.ReportNode(m.Node, "Use '_d()' instead of 'Default::default()'",
					rule.NewFix(rule.ReplaceNode(m.Node, "_d()")))
				return nil
			},
		}},
	}
}

// PreferImplParam reports generic type parameters that are used by
// exactly one parameter and could be written as `param: impl Trait`.
func PreferImplParam() *rule.Rule {
	return &rule.Rule{
		ID:          "prefer-impl-param",
		Description: "Prefer `param: impl Trait` to a single-use constrained generic",
		Languages:   []string{language.Rust},
		Severity:    rule.SeverityInfo,
		Listeners: []rule.Listener{{
			Query: `((function_item
			           type_parameters: (type_parameters
			             (constrained_type_parameter) @c)))`,
			Capture: "c",
			Handle:  preferImplParam,
		}},
	}
}

func preferImplParam(c *rule.Context, m rule.Match) error {
	node := m.Node
	nameNode := node.ChildByFieldName("left")
	if nameNode == nil || nameNode.Type() != "type_identifier" {
		return nil
	}
	name := c.Text(nameNode)
	fn := c.File.Enclosing(node, "function_item")
	if fn == nil {
		return nil
	}
	usages := func(n *sitter.Node) (int, error) {
		if n == nil {
			return 0, nil
		}
		caps, err := c.File.QueryCaptures(
			fmt.Sprintf(`((type_identifier) @usage (#eq? @usage %q))`, name), n)
		return len(caps), err
	}

	// Used by exactly one parameter.
	n, err := usages(fn.ChildByFieldName("parameters"))
	if err != nil || n != 1 {
		return err
	}
	// Not part of the return type.
	n, err = usages(fn.ChildByFieldName("return_type"))
	if err != nil || n > 0 {
		return err
	}
	// Not referenced by another type parameter's bounds.
	n, err = usages(node.Parent())
	if err != nil || n != 1 {
		return err
	}
	// Not referenced by a where clause.
	for _, child := range c.File.NamedChildren(fn) {
		if child.Type() != "where_clause" {
			continue
		}
		n, err = usages(child)
		if err != nil || n > 0 {
			return err
		}
	}

	c.ReportNode(node, "Prefer using 'param: impl Trait'", nil)
	return nil
}
