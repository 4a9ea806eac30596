// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/sitterlint/services/lint/engine"
	"github.com/AleutianAI/sitterlint/services/lint/server"
	"github.com/AleutianAI/sitterlint/services/lint/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lint engine over HTTP",
		Long: `Serve the lint engine over HTTP.

  GET  /v1/lint/health
  GET  /v1/lint/rules
  POST /v1/lint        {"path": "a.py", "content": "...", "fix": true}
  GET  /metrics        (Prometheus, unless OTEL_METRICS_EXPORTER says otherwise)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.loadConfig(nil); err != nil {
				return err
			}

			tcfg := telemetry.DefaultConfig()
			if os.Getenv("OTEL_METRICS_EXPORTER") == "" {
				tcfg.MetricExporter = telemetry.ExporterPrometheus
			}
			shutdown, err := a.initTelemetry(ctx, tcfg)
			if err != nil {
				return err
			}
			defer shutdown()

			if debug {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			set := a.ruleSet()
			opts := a.cfg.EngineOptions(engine.DefaultOptions())
			opts.Fix = false
			eng, err := a.newEngine(set, opts, nil)
			if err != nil {
				return err
			}
			router := server.NewRouter(server.NewHandlers(eng, a.logger.Slog()), server.Config{Debug: debug})
			if err := server.Serve(ctx, addr, router, a.logger.Slog()); err != nil {
				return &ExitError{Code: ExitFailure, Err: err}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable gin debug mode and request logging")
	return cmd
}
