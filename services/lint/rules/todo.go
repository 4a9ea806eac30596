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
	"regexp"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// DefaultMaxTodoComments is the max-todo-comments limit when none is
// configured.
const DefaultMaxTodoComments = 5

var todoPattern = regexp.MustCompile(`\b(TODO|FIXME)\b`)

// todoState collects TODO comments in source order.
type todoState struct {
	comments []*sitter.Node
}

// MaxTodoComments reports files with more TODO/FIXME comments than the
// "max" option allows. The report is made once per file, at the first
// comment over the limit.
func MaxTodoComments() *rule.Rule {
	count := func(c *rule.Context, m rule.Match) error {
		if todoPattern.MatchString(c.Text(m.Node)) {
			st := rule.StateOf[*todoState](c)
			st.comments = append(st.comments, m.Node)
		}
		return nil
	}
	commentLangs := []string{
		language.Go, language.Python, language.JavaScript, language.TypeScript, language.TSX,
		language.Bash, language.CSS, language.HTML, language.YAML, language.Dockerfile, language.SQL,
	}

	return &rule.Rule{
		ID:             "max-todo-comments",
		Description:    "Limit the number of TODO and FIXME comments per file",
		Severity:       rule.SeverityWarning,
		DefaultOptions: map[string]any{"max": DefaultMaxTodoComments},
		Messages: map[string]string{
			"tooMany": "File has {{count}} TODO comments (max {{max}})",
		},
		NewState: func() any { return &todoState{} },
		Listeners: []rule.Listener{
			{Kind: "comment", Languages: commentLangs, Handle: count},
			{Kind: "line_comment", Languages: []string{language.Rust}, Handle: count},
			{Kind: "block_comment", Languages: []string{language.Rust}, Handle: count},
		},
		OnFileEnd: func(c *rule.Context) error {
			st := rule.StateOf[*todoState](c)
			limit := c.OptionInt("max", DefaultMaxTodoComments)
			if limit < 0 || len(st.comments) <= limit {
				return nil
			}
			c.ReportMessage(st.comments[limit], "tooMany", map[string]string{
				"count": strconv.Itoa(len(st.comments)),
				"max":   strconv.Itoa(limit),
			}, nil)
			return nil
		},
	}
}
