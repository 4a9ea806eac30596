// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scheduler runs per-file lint jobs on a fixed-size worker pool.
//
// Each file is processed start to finish by one worker. Workers pull paths
// from a shared queue and hand finished results to a single consumer
// goroutine over a channel, so the consumer owns every result it receives.
//
// Cancellation is observed between files: a file already started runs to
// completion, files not yet started are reported as skipped. A job that
// returns an error wrapping ErrFatal (or panics with one) aborts the whole
// run; any other panic fails only its own file.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/sitterlint/services/lint/report"
)

// ErrFatal marks errors that must abort the run.
var ErrFatal = errors.New("fatal lint error")

// Job lints one file. A non-nil error must wrap ErrFatal; the result is
// then discarded and the run aborted.
type Job func(ctx context.Context, path string) (report.FileResult, error)

// Sink receives results from a single goroutine.
type Sink func(result report.FileResult)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Scheduler is a fixed-size worker pool.
//
// Thread Safety:
//
//	A Scheduler may run several Run calls concurrently; each call has its
//	own workers.
type Scheduler struct {
	workers int
	logger  *slog.Logger
}

// New creates a Scheduler. workers <= 0 uses runtime.NumCPU().
func New(workers int, opts ...Option) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	s := &Scheduler{workers: workers, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Workers returns the pool size.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Run processes paths and delivers one result per distinct path to sink.
//
// Description:
//
//	Duplicate paths are processed once. When ctx is canceled or a job
//	fails fatally, workers stop taking new files; every path without a
//	result is then delivered as StatusSkipped.
//
// Inputs:
//
//	ctx - Cancellation, checked before each file.
//	paths - Files to process.
//	job - Per-file work.
//	sink - Result consumer, called from the calling goroutine.
//
// Outputs:
//
//	error - The fatal error, or ctx.Err() if cancellation left paths
//	        without a result, else nil.
func (s *Scheduler) Run(ctx context.Context, paths []string, job Job, sink Sink) error {
	paths = Dedupe(paths)

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan string)
	results := make(chan report.FileResult, s.workers)

	g.Go(func() error {
		defer close(queue)
		for _, p := range paths {
			select {
			case queue <- p:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < s.workers; w++ {
		g.Go(func() error {
			for p := range queue {
				if gctx.Err() != nil {
					return nil
				}
				res, err := s.runOne(gctx, p, job)
				if err != nil {
					s.logger.Error("run aborted",
						slog.String("path", p),
						slog.String("error", err.Error()))
					return err
				}
				results <- res
			}
			return nil
		})
	}

	var runErr error
	done := make(chan struct{})
	go func() {
		runErr = g.Wait()
		close(results)
		close(done)
	}()

	delivered := make(map[string]bool, len(paths))
	for res := range results {
		delivered[res.Path] = true
		sink(res)
	}
	<-done

	var missing []string
	for _, p := range paths {
		if !delivered[p] {
			missing = append(missing, p)
		}
	}
	// A cancellation that arrives after the last result was delivered
	// did not cut the run short.
	if runErr == nil && len(missing) > 0 {
		runErr = ctx.Err()
	}
	if runErr != nil {
		for _, p := range missing {
			sink(report.FileResult{Path: p, Status: report.StatusSkipped})
		}
	}
	return runErr
}

// runOne runs job with panic isolation.
func (s *Scheduler) runOne(ctx context.Context, path string, job Job) (res report.FileResult, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if perr, ok := r.(error); ok && errors.Is(perr, ErrFatal) {
			err = perr
			return
		}
		s.logger.Warn("file processing panicked",
			slog.String("path", path),
			slog.Any("panic", r),
			slog.String("stack", string(debug.Stack())))
		res = report.FileResult{
			Path:   path,
			Status: report.StatusFailed,
			Error:  fmt.Sprintf("panic: %v", r),
		}
		err = nil
	}()

	res, err = job(ctx, path)
	if err != nil {
		if !errors.Is(err, ErrFatal) {
			err = fmt.Errorf("%w: %w", ErrFatal, err)
		}
		return report.FileResult{}, err
	}
	if res.Path == "" {
		res.Path = path
	}
	return res, nil
}

// Dedupe removes repeated paths, keeping first occurrences in order.
func Dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
