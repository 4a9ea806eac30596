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

import "github.com/AleutianAI/sitterlint/services/lint/rule"

// Activation selects which rules run and how.
//
// Description:
//
//	The registry treats activation as an opaque filter supplied by the
//	configuration layer. Implementations must be immutable for the
//	duration of a run and safe for concurrent use.
type Activation interface {
	// IsActive reports whether the rule runs.
	IsActive(ruleID string) bool

	// Severity returns the effective severity, given the rule default.
	Severity(ruleID string, def rule.Severity) rule.Severity

	// Options returns rule options, or nil for the rule defaults.
	Options(ruleID string) map[string]any
}

// AllActive activates every rule with its default severity and options.
type AllActive struct{}

// IsActive always returns true.
func (AllActive) IsActive(string) bool { return true }

// Severity returns def.
func (AllActive) Severity(_ string, def rule.Severity) rule.Severity { return def }

// Options returns nil.
func (AllActive) Options(string) map[string]any { return nil }

// Only activates a fixed set of rules with default settings.
type Only map[string]bool

// IsActive reports whether ruleID is in the set.
func (o Only) IsActive(ruleID string) bool { return o[ruleID] }

// Severity returns def.
func (Only) Severity(_ string, def rule.Severity) rule.Severity { return def }

// Options returns nil.
func (Only) Options(string) map[string]any { return nil }
