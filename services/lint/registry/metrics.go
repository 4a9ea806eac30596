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

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("sitterlint.registry")
	meter  = otel.Meter("sitterlint.registry")
)

var (
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	compileTotal   metric.Int64Counter
	compileLatency metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"lint_matcher_cache_hits_total",
			metric.WithDescription("Total number of matcher cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"lint_matcher_cache_misses_total",
			metric.WithDescription("Total number of matcher cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		compileTotal, err = meter.Int64Counter(
			"lint_matcher_compile_total",
			metric.WithDescription("Total number of merged query compilations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		compileLatency, err = meter.Float64Histogram(
			"lint_matcher_compile_duration_seconds",
			metric.WithDescription("Duration of merged query compilation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startBuildSpan(ctx context.Context, lang string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Cache.Build",
		trace.WithAttributes(attribute.String("registry.language", lang)),
	)
}

func recordCacheLookup(ctx context.Context, lang string, hit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("language", lang))
	if hit {
		cacheHits.Add(ctx, 1, attrs)
	} else {
		cacheMisses.Add(ctx, 1, attrs)
	}
}

func recordBuild(ctx context.Context, lang string, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("language", lang),
		attribute.Bool("success", success),
	)
	compileTotal.Add(ctx, 1, attrs)
	compileLatency.Record(ctx, duration.Seconds(), attrs)
}
