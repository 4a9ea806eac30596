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
	"strconv"

	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// seenFunctions maps a function name to the line of its first declaration.
type seenFunctions map[string]int

// NoDuplicateFunction reports top-level functions declared more than once
// in a file. The first declaration wins; later ones are reported.
func NoDuplicateFunction() *rule.Rule {
	return &rule.Rule{
		ID:          "no-duplicate-function",
		Description: "Functions must not be declared twice in one file",
		Languages:   []string{language.Go},
		Severity:    rule.SeverityError,
		Messages: map[string]string{
			"duplicate": "Function '{{name}}' is already declared on line {{line}}",
		},
		NewState: func() any { return seenFunctions{} },
		Listeners: []rule.Listener{{
			Query: `(function_declaration name: (identifier) @name)`,
			Handle: func(c *rule.Context, m rule.Match) error {
				seen := rule.StateOf[seenFunctions](c)
				name := c.Text(m.Node)
				line := c.File.Position(int(m.Node.StartByte())).Line
				if first, ok := seen[name]; ok {
					c.ReportMessage(m.Node, "duplicate", map[string]string{
						"name": name,
						"line": strconv.Itoa(first),
					}, nil)
					return nil
				}
				seen[name] = line
				return nil
			},
		}},
	}
}
