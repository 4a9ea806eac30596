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
	"log/slog"
	"sort"

	"github.com/AleutianAI/sitterlint/services/lint/filectx"
	"github.com/AleutianAI/sitterlint/services/lint/registry"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// collected is a reported violation with its ordering keys.
type collected struct {
	v     rule.Violation
	order int // rule registration order
	seq   int // report order within the pass
}

// collector accumulates the violations of one lint pass.
//
// Ranges are rebuilt against the pass's buffer when reported, so a
// violation never points outside the source that produced it. Fixes are
// checked at the same time: a fix from a rule that is not Fixable, or whose
// edits overlap each other or leave the buffer, is dropped and the
// violation kept.
type collector struct {
	file   *filectx.File
	path   string
	srcLen int
	rules  []registry.ActiveRule
	items  []collected
	logger *slog.Logger
}

func newCollector(file *filectx.File, rules []registry.ActiveRule, logger *slog.Logger) *collector {
	return &collector{file: file, path: file.Path, srcLen: len(file.Source), rules: rules, logger: logger}
}

// reporter returns the report callback for the rule at index ruleIdx.
func (c *collector) reporter(ruleIdx int) rule.ReportFunc {
	active := c.rules[ruleIdx]
	return func(v rule.Violation) {
		if v.Range.StartByte < 0 || v.Range.EndByte > c.srcLen || v.Range.EndByte < v.Range.StartByte {
			c.logger.Debug("violation range clamped",
				slog.String("rule", active.Rule.ID),
				slog.String("path", c.path),
				slog.Int("start", v.Range.StartByte),
				slog.Int("end", v.Range.EndByte))
		}
		v.Range = c.file.RangeOf(v.Range.StartByte, v.Range.EndByte)
		if v.Fix != nil {
			if !active.Rule.Fixable {
				c.logger.Warn("fix dropped: rule is not fixable",
					slog.String("rule", active.Rule.ID),
					slog.String("path", c.path))
				v.Fix = nil
			} else if err := v.Fix.Validate(c.srcLen); err != nil {
				c.logger.Warn("fix dropped: invalid edits",
					slog.String("rule", active.Rule.ID),
					slog.String("path", c.path),
					slog.String("error", err.Error()))
				v.Fix = nil
			}
		}
		v.FixApplied = false
		c.items = append(c.items, collected{v: v, order: active.Order, seq: len(c.items)})
	}
}

// finalize orders the violations by (start offset, rule id, report order).
func (c *collector) finalize() []collected {
	out := make([]collected, len(c.items))
	copy(out, c.items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].v, out[j].v
		if a.Range.StartByte != b.Range.StartByte {
			return a.Range.StartByte < b.Range.StartByte
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return out[i].seq < out[j].seq
	})
	return out
}

func violationsOf(items []collected) []rule.Violation {
	out := make([]rule.Violation, len(items))
	for i := range items {
		out[i] = items[i].v
	}
	return out
}
