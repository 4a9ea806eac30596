// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/AleutianAI/sitterlint/services/lint/report"
	"github.com/AleutianAI/sitterlint/services/lint/rule"
)

// LintRequest is the request body for POST /v1/lint.
type LintRequest struct {
	// Path names the buffer in results and selects the language when
	// Language is empty.
	Path string `json:"path" binding:"required,max=4096"`

	// Language overrides extension-based detection ("rust").
	Language string `json:"language" binding:"omitempty,max=64"`

	// Content is the source buffer.
	Content string `json:"content" binding:"max=4194304"`

	// Fix applies fixes and returns the fixed buffer.
	Fix bool `json:"fix"`
}

// LintResponse is the response for POST /v1/lint.
type LintResponse struct {
	// RequestID echoes the X-Request-ID header.
	RequestID string `json:"request_id"`

	// Result is the lint result for the buffer.
	Result report.FileResult `json:"result"`

	// Fixed is the fixed buffer, present when fixes changed the content.
	Fixed *string `json:"fixed,omitempty"`

	// Diff is a unified diff of Content against Fixed.
	Diff string `json:"diff,omitempty"`
}

// RuleInfo describes one registered rule.
type RuleInfo struct {
	ID          string        `json:"id"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	Languages   []string      `json:"languages"`
	Fixable     bool          `json:"fixable"`
	Severity    rule.Severity `json:"severity"`
}

// RulesResponse is the response for GET /v1/lint/rules.
type RulesResponse struct {
	Rules    []RuleInfo `json:"rules"`
	Rejected []string   `json:"rejected,omitempty"`
}

// HealthResponse is the response for GET /v1/lint/health.
type HealthResponse struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Rules     int      `json:"rules"`
	Languages []string `json:"languages"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
