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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/sitterlint/services/lint/report"
)

// Package-level tracer and meter for lint operations.
var (
	tracer = otel.Tracer("sitterlint.engine")
	meter  = otel.Meter("sitterlint.engine")
)

// Metrics for lint operations.
var (
	fileLatency     metric.Float64Histogram
	filesTotal      metric.Int64Counter
	violationsTotal metric.Int64Counter
	fixesApplied    metric.Int64Counter
	ruleFaults      metric.Int64Counter
	passesPerFile   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		fileLatency, err = meter.Float64Histogram(
			"lint_file_duration_seconds",
			metric.WithDescription("Duration of linting one file, including fix passes"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesTotal, err = meter.Int64Counter(
			"lint_files_total",
			metric.WithDescription("Total number of files linted"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		violationsTotal, err = meter.Int64Counter(
			"lint_violations_total",
			metric.WithDescription("Total number of violations reported"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fixesApplied, err = meter.Int64Counter(
			"lint_fixes_applied_total",
			metric.WithDescription("Total number of fixes applied"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		ruleFaults, err = meter.Int64Counter(
			"lint_rule_faults_total",
			metric.WithDescription("Total number of rule faults"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		passesPerFile, err = meter.Int64Histogram(
			"lint_passes_per_file",
			metric.WithDescription("Number of lint passes per file"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startFileSpan(ctx context.Context, lang, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.LintSource",
		trace.WithAttributes(
			attribute.String("lint.language", lang),
			attribute.String("lint.file_path", path),
		),
	)
}

func setFileSpanResult(span trace.Span, res report.FileResult) {
	span.SetAttributes(
		attribute.String("lint.status", string(res.Status)),
		attribute.Int("lint.violations", len(res.Violations)),
		attribute.Int("lint.passes", res.Passes),
		attribute.Int("lint.fixes_applied", res.FixesApplied),
	)
}

func startRunSpan(ctx context.Context, files int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.Run",
		trace.WithAttributes(attribute.Int("lint.files", files)),
	)
}

func setRunSpanResult(span trace.Span, rep *report.RunReport) {
	span.SetAttributes(
		attribute.Int("lint.errors", rep.Summary.Errors),
		attribute.Int("lint.warnings", rep.Summary.Warnings),
		attribute.Bool("lint.aborted", rep.Aborted),
	)
}

func recordFileMetrics(ctx context.Context, lang string, status report.Status, duration time.Duration, res report.FileResult) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("language", lang),
		attribute.String("status", string(status)),
	)
	langOnly := metric.WithAttributes(attribute.String("language", lang))

	fileLatency.Record(ctx, duration.Seconds(), attrs)
	filesTotal.Add(ctx, 1, attrs)
	passesPerFile.Record(ctx, int64(res.Passes), langOnly)
	if n := len(res.Violations); n > 0 {
		violationsTotal.Add(ctx, int64(n), langOnly)
	}
	if res.FixesApplied > 0 {
		fixesApplied.Add(ctx, int64(res.FixesApplied), langOnly)
	}
	for _, f := range res.Faults {
		ruleFaults.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", f.RuleID)))
	}
}
