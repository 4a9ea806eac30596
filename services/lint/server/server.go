// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the lint engine over HTTP.
//
// Endpoints:
//
//	GET  /v1/lint/health - Health check
//	GET  /v1/lint/rules  - Registered and rejected rules
//	POST /v1/lint        - Lint (and optionally fix) one buffer
//	GET  /metrics        - Prometheus metrics, when the exporter is active
//
// Example:
//
//	eng := engine.New(set)
//	router := server.NewRouter(server.NewHandlers(eng, logger), server.Config{})
//	err := server.Serve(ctx, ":8080", router, logger)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/sitterlint/services/lint/telemetry"
)

// shutdownTimeout bounds graceful shutdown in Serve.
const shutdownTimeout = 10 * time.Second

// Config controls router construction.
type Config struct {
	// ServiceName names the server in traces. Default "sitterlint".
	ServiceName string

	// Debug enables gin's request logger.
	Debug bool
}

// RegisterRoutes registers the /lint routes on a /v1 router group.
//
// Description:
//
//	POST /v1/lint lints a buffer; GET /v1/lint/health and
//	GET /v1/lint/rules describe the service.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.POST("/lint", handlers.HandleLint)

	lint := rg.Group("/lint")
	{
		lint.GET("/health", handlers.HandleHealth)
		lint.GET("/rules", handlers.HandleRules)
	}
}

// NewRouter builds the gin engine with middleware and all routes.
//
// /metrics is mounted only when telemetry.Init enabled the Prometheus
// exporter.
func NewRouter(handlers *Handlers, cfg Config) *gin.Engine {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "sitterlint"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Debug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware(cfg.ServiceName))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}
	return router
}

// Serve runs an HTTP server until ctx is cancelled, then shuts it down.
//
// Description:
//
//	In-flight requests get up to ten seconds to finish after ctx is done.
//
// Outputs:
//
//	error - Nil after a clean shutdown; the listen error otherwise.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting lint server", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down lint server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
