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
	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// ReplaceFooWithBar reports identifiers named foo and renames them to bar.
func ReplaceFooWithBar() *rule.Rule {
	return &rule.Rule{
		ID:          "replace-foo-with-bar",
		Description: "Identifiers named foo should be named bar",
		Languages:   []string{language.Go, language.Python, language.JavaScript, language.TypeScript, language.Rust},
		Fixable:     true,
		Severity:    rule.SeverityWarning,
		Messages: map[string]string{
			"rename": "Use '{{ replacement }}' instead of '{{ name }}'",
		},
		Listeners: []rule.Listener{{
			Query: `((identifier) @name (#eq? @name "foo"))`,
			Handle: func(c *rule.Context, m rule.Match) error {
				c.ReportMessage(m.Node, "rename",
					map[string]string{"name": "foo", "replacement": "bar"},
					rule.NewFix(rule.ReplaceNode(m.Node, "bar")))
				return nil
			},
		}},
	}
}
