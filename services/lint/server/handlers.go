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
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/sitterlint/services/lint/engine"
	"github.com/AleutianAI/sitterlint/services/lint/format"
	"github.com/AleutianAI/sitterlint/services/lint/language"
)

// Version is the lint service version reported by /health.
const Version = "0.1.0"

// requestIDHeader carries the per-request id.
const requestIDHeader = "X-Request-ID"

// Handlers contains the HTTP handlers for the lint service.
//
// Thread Safety: Safe for concurrent use; engines are shared.
type Handlers struct {
	lint   *engine.Engine
	fix    *engine.Engine
	logger *slog.Logger
}

// NewHandlers creates handlers over a lint engine.
//
// Description:
//
//	A second engine with fixing enabled is derived from lint. Both share
//	the rule set and the matcher cache, so compiled matchers are reused
//	across fix and non-fix requests.
func NewHandlers(lint *engine.Engine, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	opts := lint.Options()
	opts.Fix = true
	opts.SingleFixPass = false
	if opts.MaxFixPasses <= 0 {
		opts.MaxFixPasses = engine.DefaultMaxFixPasses
	}
	fix := engine.New(lint.Rules(),
		engine.WithOptions(opts),
		engine.WithCache(lint.Cache()),
		engine.WithActivation(lint.Activation()),
		engine.WithLogger(logger))
	return &Handlers{lint: lint, fix: fix, logger: logger}
}

// HandleHealth handles GET /v1/lint/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Rules:     h.lint.Rules().Len(),
		Languages: h.lint.Languages().Names(),
	})
}

// HandleRules handles GET /v1/lint/rules.
//
// Description:
//
//	Lists accepted rules in registration order and the registration
//	errors of rejected ones.
func (h *Handlers) HandleRules(c *gin.Context) {
	set := h.lint.Rules()
	resp := RulesResponse{Rules: []RuleInfo{}}
	for _, r := range set.Rules() {
		resp.Rules = append(resp.Rules, RuleInfo{
			ID:          r.ID,
			Description: r.Description,
			URL:         r.URL,
			Languages:   set.SupportedLanguages(r.ID),
			Fixable:     r.Fixable,
			Severity:    r.Severity,
		})
	}
	resp.Rejected = set.Warnings()
	c.JSON(http.StatusOK, resp)
}

// HandleLint handles POST /v1/lint.
//
// Description:
//
//	Lints one buffer. The language comes from the request or, when
//	absent, from the path's extension. With fix set the response carries
//	the fixed buffer and a unified diff.
//
// Request Body:
//
//	LintRequest
//
// Response:
//
//	200 OK: LintResponse
//	400 Bad Request: Invalid body or unsupported language
//	500 Internal Server Error: Run-wide failure
func (h *Handlers) HandleLint(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleLint")

	var req LintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	lang, err := h.resolveLanguage(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "UNSUPPORTED_LANGUAGE",
		})
		return
	}

	eng := h.lint
	if req.Fix {
		eng = h.fix
	}
	src := []byte(req.Content)
	res, err := eng.LintSource(c.Request.Context(), req.Path, lang, src)
	if err != nil {
		logger.Error("Lint failed", "path", req.Path, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "LINT_FAILED",
		})
		return
	}

	resp := LintResponse{RequestID: requestID, Result: res}
	if res.Changed() {
		fixed := string(res.FixedSource)
		resp.Fixed = &fixed
		diff, err := format.Unified(req.Path, src, res.FixedSource)
		if err != nil {
			logger.Warn("Diff failed", "path", req.Path, "error", err)
		}
		resp.Diff = diff
	}

	logger.Info("Buffer linted",
		"path", req.Path,
		"language", lang.Name,
		"status", res.Status,
		"violations", len(res.Violations),
		"fixes_applied", res.FixesApplied)
	c.JSON(http.StatusOK, resp)
}

// resolveLanguage picks the request's language.
func (h *Handlers) resolveLanguage(req LintRequest) (*language.Language, error) {
	langs := h.lint.Languages()
	if req.Language != "" {
		lang, ok := langs.ByName(req.Language)
		if !ok {
			return nil, fmt.Errorf("%w: %s", language.ErrUnsupportedLanguage, req.Language)
		}
		return lang, nil
	}
	return langs.ForPath(req.Path)
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(requestIDHeader, requestID)
	return requestID
}
