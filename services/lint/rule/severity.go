// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rule

import (
	"fmt"
	"strings"
)

// =============================================================================
// SEVERITY
// =============================================================================

// Severity represents the severity level of a violation.
type Severity int

const (
	// SeverityInfo represents informational findings.
	SeverityInfo Severity = iota

	// SeverityWarning represents findings that do not fail a run.
	SeverityWarning

	// SeverityError represents findings that fail a run.
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseSeverity parses a severity name.
//
// Description:
//
//	Accepts the canonical names plus the common aliases used by other
//	linters. Matching is case-insensitive.
//
// Inputs:
//
//	s - Severity string (e.g., "error", "warn", "info")
//
// Outputs:
//
//	Severity - The parsed severity level.
//	error - Non-nil for unknown names.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "err":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "info", "note", "hint":
		return SeverityInfo, nil
	default:
		return SeverityWarning, fmt.Errorf("unknown severity %q", s)
	}
}

// MarshalText encodes the severity as its name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
